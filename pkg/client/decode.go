package client

import (
	"fmt"
	"strconv"

	"github.com/Sternrassler/igdump/pkg/endpoint"
	"github.com/tidwall/gjson"
)

// decodeProfile reads the data.user object of a profile lookup response.
func decodeProfile(body []byte) (Profile, error) {
	user := gjson.GetBytes(body, "data.user")
	if !user.IsObject() {
		return Profile{}, &DecodeError{Endpoint: endpoint.ProfileLookup, Reason: "missing data.user object", Body: body}
	}

	r := fieldReader{obj: user}
	profile := Profile{
		FullName:       r.str("full_name"),
		Username:       r.str("username"),
		Biography:      r.str("biography"),
		FollowerCount:  r.int("edge_followed_by.count"),
		FollowingCount: r.int("edge_follow.count"),
		Category:       r.optionalStr("category_enum"),
		ID:             r.int("id"),
	}
	if r.err != nil {
		return Profile{}, &DecodeError{Endpoint: endpoint.ProfileLookup, Reason: r.err.Error(), Body: body}
	}
	profile.DeclaredFollowing = profile.FollowingCount

	return profile, nil
}

// decodeFollowing reads the users array of a following page response.
func decodeFollowing(body []byte) ([]AccountSummary, error) {
	users := gjson.GetBytes(body, "users")
	if !users.IsArray() {
		return nil, &DecodeError{Endpoint: endpoint.FollowingPage, Reason: "missing users array", Body: body}
	}

	items := users.Array()
	summaries := make([]AccountSummary, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, &DecodeError{Endpoint: endpoint.FollowingPage, Reason: fmt.Sprintf("users[%d]: not an object", i), Body: body}
		}
		r := fieldReader{obj: item}
		summary := AccountSummary{
			ID:       r.int("pk"),
			Username: r.str("username"),
		}
		if r.err != nil {
			return nil, &DecodeError{Endpoint: endpoint.FollowingPage, Reason: fmt.Sprintf("users[%d]: %v", i, r.err), Body: body}
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// fieldReader extracts typed fields from a JSON object and keeps the first failure.
type fieldReader struct {
	obj gjson.Result
	err error
}

func (r *fieldReader) fail(path, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: expected %s", path, want)
	}
}

func (r *fieldReader) str(path string) string {
	v := r.obj.Get(path)
	if v.Type != gjson.String {
		r.fail(path, "string")
		return ""
	}
	return v.Str
}

// optionalStr accepts a missing or null field as "".
func (r *fieldReader) optionalStr(path string) string {
	v := r.obj.Get(path)
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	default:
		r.fail(path, "string or null")
		return ""
	}
}

// int accepts JSON integers and numeric strings, which Instagram uses for ids.
func (r *fieldReader) int(path string) int64 {
	v := r.obj.Get(path)
	var raw string
	switch v.Type {
	case gjson.Number:
		raw = v.Raw
	case gjson.String:
		raw = v.Str
	default:
		r.fail(path, "integer")
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.fail(path, "integer")
		return 0
	}
	return n
}

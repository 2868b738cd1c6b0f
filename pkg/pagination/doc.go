// Package pagination assembles the complete following list of one account
// from the offset-paged friendships endpoint.
//
// The paginator first looks up the subject's profile, whose following-edge
// count decides how many pages to request, then requests the offsets
// pageSize, 2*pageSize, ... up to and including the first offset at or past
// count+pageSize. The trailing page is usually empty; it is still requested
// because the declared count is a snapshot that may lag the listing.
//
// Example usage:
//
//	p := pagination.NewPaginator(igClient, pagination.DefaultConfig())
//	result, err := p.FetchAll(ctx, "someone")
//
// Pages are fetched serially or by a bounded pool of workers. Either way the
// result is the concatenation of all pages in offset order, neither sorted nor
// deduplicated. A single failed page fails the whole walk and no partial list
// is returned.
package pagination

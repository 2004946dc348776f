// Package batch fetches contiguous id ranges of a PokeAPI endpoint.
//
// Two paths are provided. The concurrent path submits one request per id at
// once over a connection pool scoped to the call; the pool caps how many
// connections are open, nothing else throttles submission. The sequential
// path walks the ids in order over one connection.
//
// Example usage:
//
//	requester := batch.NewRequester(batch.DefaultConfig(client.DefaultConfig(logger)))
//	records, err := requester.FetchRangeConcurrent(ctx, 1, 152)
//
// Both paths:
//   - return records in id order, element i belongs to id minID+i
//   - abort on the first failed request and return no partial result
//   - close their connection pool before returning
package batch

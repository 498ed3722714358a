package cache

import "fmt"

// DocKey builds the cache key for a single-document read.
func DocKey(entity string, id int) string {
	return fmt.Sprintf("%s:%d", entity, id)
}

// ListKey builds the cache key for a paged, sorted listing.
func ListKey(entity string, page, perPage int, sort string) string {
	return fmt.Sprintf("list:%s:%d:%d:%s", entity, page, perPage, sort)
}

// SearchKey builds the cache key for a field-substring search.
func SearchKey(entity, query, field string, page, perPage int, sort string) string {
	return fmt.Sprintf("search:%s:%s:%s:%d:%d:%s", entity, field, query, page, perPage, sort)
}

// QueryKey builds the cache key for a Sulpher query result.
func QueryKey(queryID string) string {
	return "query:" + queryID
}

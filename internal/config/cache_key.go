package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestAnswerKey returns the cache key holding a test's ordered answer key.
func (r *CacheKeyStruct) TestAnswerKey(testID int) string {
	return fmt.Sprintf("test:%d:answer_key", testID)
}

// TestAnswerKeyGeneration returns the counter bumped on every invalidation of
// a test's answer key. A loader only fills the cache if it did not move.
func (r *CacheKeyStruct) TestAnswerKeyGeneration(testID int) string {
	return fmt.Sprintf("test:%d:answer_key:gen", testID)
}

var CacheKey = NewCacheKeyStruct()

package s3

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API. It paginates like S3: keys in
// lexical order, MaxKeys per page, continuation tokens as offsets.
type MockS3Client struct {
	mu   sync.RWMutex
	keys map[string]struct{}

	// ListObjectsV2Calls counts calls for test assertions.
	ListObjectsV2Calls int

	// FailWithCode makes every call fail with a smithy API error of this code.
	FailWithCode string
}

// NewMockS3Client creates a new mock S3 client holding keys.
func NewMockS3Client(keys ...string) *MockS3Client {
	m := &MockS3Client{keys: make(map[string]struct{})}
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
	return m
}

// PutKey adds an object key.
func (m *MockS3Client) PutKey(key string) {
	m.mu.Lock()
	m.keys[key] = struct{}{}
	m.mu.Unlock()
}

// ResetCounts resets call counters for test isolation.
func (m *MockS3Client) ResetCounts() {
	m.mu.Lock()
	m.ListObjectsV2Calls = 0
	m.mu.Unlock()
}

// ListObjectsV2 implements API.ListObjectsV2 for testing.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListObjectsV2Calls++
	if m.FailWithCode != "" {
		return nil, &smithyAPIError{code: m.FailWithCode, message: "simulated " + m.FailWithCode}
	}

	var matched []string
	for key := range m.keys {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)

	start := 0
	if tok := aws.ToString(params.ContinuationToken); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 || n > len(matched) {
			return nil, &smithyAPIError{code: "InvalidArgument", message: "bad continuation token"}
		}
		start = n
	}
	end := len(matched)
	if limit := int(aws.ToInt32(params.MaxKeys)); limit > 0 && start+limit < end {
		end = start + limit
	}

	contents := make([]types.Object, 0, end-start)
	for _, key := range matched[start:end] {
		contents = append(contents, types.Object{Key: aws.String(key)})
	}
	out := &s3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(end < len(matched)),
	}
	if end < len(matched) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

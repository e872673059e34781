package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	base := errors.New("boom")
	cases := []struct {
		status int
		want   ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeTransient},
		{529, ErrorTypeTransient},
		{400, ErrorTypeBadRequest},
		{0, ErrorTypeUnknown},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			err := Classify("anthropic", tc.status, base)
			assert.Equal(t, tc.want, TypeOf(err))
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestClassifyKeepsCancellation(t *testing.T) {
	err := Classify("openai", 0, fmt.Errorf("stream: %w", context.Canceled))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsAuth(err))
}

func TestClassifyTransientWithoutStatus(t *testing.T) {
	err := Classify("openai", 0, errors.New("read tcp: connection reset by peer"))
	assert.Equal(t, ErrorTypeTransient, TypeOf(err))
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(Classify("anthropic", 401, errors.New("invalid x-api-key"))))
	assert.False(t, IsAuth(errors.New("plain")))
}

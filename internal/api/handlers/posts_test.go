package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopost/internal/types"
)

type mockPostService struct {
	publishFn func(ctx context.Context, userID string) (*types.PublishResult, error)
	previewFn func(ctx context.Context, userID, promptText string) (string, error)

	previewPrompt *string
}

func (m *mockPostService) PublishNow(ctx context.Context, userID string) (*types.PublishResult, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, userID)
	}
	return &types.PublishResult{ContentID: "ci_1", PostID: "post_1", Text: "hello"}, nil
}

func (m *mockPostService) Preview(ctx context.Context, userID, promptText string) (string, error) {
	m.previewPrompt = &promptText
	if m.previewFn != nil {
		return m.previewFn(ctx, userID, promptText)
	}
	return "candidate", nil
}

func newPostRouter(svc PostService) http.Handler {
	return newRouter(NewPostHandler(svc, testValidator(), testLogger()).RegisterRoutes)
}

func TestPostHandler_PublishNow(t *testing.T) {
	rec := doRequest(t, newPostRouter(&mockPostService{}), http.MethodPost, "/v1/posts", "user_1", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var res types.PublishResult
	decodeData(t, rec, &res)
	assert.Equal(t, types.PublishResult{ContentID: "ci_1", PostID: "post_1", Text: "hello"}, res)
}

func TestPostHandler_PublishNowErrors(t *testing.T) {
	cases := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrCodeNotFoundCred, http.StatusNotFound},
		{types.ErrCodeNotFoundPrompt, http.StatusNotFound},
		{types.ErrCodeUpstreamGenerationExhausted, http.StatusBadGateway},
		{types.ErrCodeUpstreamPublish, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			svc := &mockPostService{publishFn: func(context.Context, string) (*types.PublishResult, error) {
				return nil, types.NewAppError(tc.code, "failed", nil)
			}}

			rec := doRequest(t, newPostRouter(svc), http.MethodPost, "/v1/posts", "user_1", nil)

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, string(tc.code), errorCode(t, rec))
		})
	}
}

func TestPostHandler_PreviewWithPrompt(t *testing.T) {
	svc := &mockPostService{}

	rec := doRequest(t, newPostRouter(svc), http.MethodPost, "/v1/posts/preview", "user_1",
		map[string]string{"promptText": "a haiku about rain"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.previewPrompt)
	assert.Equal(t, "a haiku about rain", *svc.previewPrompt)
	var res PreviewResponse
	decodeData(t, rec, &res)
	assert.Equal(t, "candidate", res.Text)
}

func TestPostHandler_PreviewWithoutBody(t *testing.T) {
	svc := &mockPostService{}

	rec := doRequest(t, newPostRouter(svc), http.MethodPost, "/v1/posts/preview", "user_1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.previewPrompt)
	assert.Empty(t, *svc.previewPrompt)
}

func TestPostHandler_PreviewRejectsMalformedBody(t *testing.T) {
	svc := &mockPostService{}

	rec := doRequest(t, newPostRouter(svc), http.MethodPost, "/v1/posts/preview", "user_1", `{"promptText":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.previewPrompt)
}

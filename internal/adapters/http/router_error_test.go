package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/corpus-qa/internal/config"
	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

func newHandlerWithQueryError(t *testing.T, err error) http.Handler {
	t.Helper()

	rt, routerErr := NewRouter(config.Config{}, &queryFake{err: err}, &documentsFake{}, nil, nil)
	if routerErr != nil {
		t.Fatalf("NewRouter() error = %v", routerErr)
	}
	return rt.Handler()
}

func TestQueryErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "invalid input maps to 400",
			err:  domain.WrapError(domain.ErrInvalidInput, "process query", errors.New("question is required")),
			want: http.StatusBadRequest,
		},
		{
			name: "upstream unavailable maps to 502",
			err:  domain.WrapError(domain.ErrUnavailable, "generate answer", errors.New("connection refused")),
			want: http.StatusBadGateway,
		},
		{
			name: "timeout maps to 504",
			err:  domain.WrapError(domain.ErrTimeout, "process query", errors.New("deadline")),
			want: http.StatusGatewayTimeout,
		},
		{
			name: "temporary failure maps to 503",
			err:  domain.WrapError(domain.ErrTemporary, "publish", errors.New("reconnecting")),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "unknown error maps to 500",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newHandlerWithQueryError(t, tc.err)
			res := postQuery(t, handler, map[string]any{"question": "test"})
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, res.Code, res.Body.String())
			}
		})
	}
}

func TestUnavailableOutranksTemporaryInChains(t *testing.T) {
	inner := domain.WrapError(domain.ErrTemporary, "qdrant search", errors.New("circuit open"))
	err := domain.WrapError(domain.ErrUnavailable, "retrieve evidence", inner)

	if got := mapErrorToHTTPStatus(err); got != http.StatusBadGateway {
		t.Fatalf("expected 502 for unavailable-over-temporary chain, got %d", got)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	rt, err := NewRouter(
		config.Config{},
		&queryFake{},
		&documentsFake{getErr: domain.WrapError(domain.ErrNotFound, "fetch document", errors.New("id=missing"))},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

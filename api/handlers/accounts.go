package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

func traceRequestErr(c *gin.Context, err error) {
	if span := opentracing.SpanFromContext(c.Request.Context()); span != nil {
		tracing.TraceErr(span, err)
	}
}

// ListAccounts returns the active mailbox accounts with their watched
// folders. Passwords never serialize.
func ListAccounts(repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := repos.EmailAccountRepository.GetActive(c.Request.Context())
		if err != nil {
			traceRequestErr(c, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list accounts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}

// GlobalMailStatus returns the shared mailbox configuration, 404 when none
// is active.
func GlobalMailStatus(repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		config, err := repos.GlobalMailRepository.GetActive(c.Request.Context())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no active global mailbox"})
				return
			}
			traceRequestErr(c, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load global mailbox"})
			return
		}
		c.JSON(http.StatusOK, config)
	}
}

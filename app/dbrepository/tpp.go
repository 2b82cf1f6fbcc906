// Package dbrepository gives HTTP handlers access to the TPP register.
package dbrepository

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/botsman/psd2cert/app/models"
)

const contextKey = "tppRepository"

// ErrTppNotFound is returned by GetTpp when no TPP carries the id.
var ErrTppNotFound = errors.New("tpp not found")

type TppRepository interface {
	// GetTpp looks a TPP up by its organization identifier (OB id).
	GetTpp(ctx context.Context, obID string) (*models.TPP, error)
}

func DbMiddleware(repo TppRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, repo)
		c.Next()
	}
}

// FromContext returns the repository installed by DbMiddleware.
func FromContext(c *gin.Context) (TppRepository, error) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, errors.New("Couldn't get db client")
	}
	repo, ok := v.(TppRepository)
	if !ok {
		return nil, errors.New("Couldn't get db client")
	}
	return repo, nil
}

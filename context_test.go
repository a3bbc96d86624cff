package video_wall

import (
	"context"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLogger(t *testing.T) {
	assert := assert_.New(t)

	assert.Same(zap.L(), Logger(context.Background()))
	logger := zap.NewNop()
	ctx := WithLogger(context.Background(), logger)
	assert.Same(logger, Logger(ctx))
}

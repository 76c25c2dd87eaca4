package sanctions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/sanctions"
)

func TestStaticFeed_Flagged(t *testing.T) {
	feed := sanctions.NewStaticFeed([]string{"IR", "kp", ""})
	ctx := context.Background()

	assert.True(t, feed.Flagged(ctx, "IR"))
	assert.True(t, feed.Flagged(ctx, "ir"))
	assert.True(t, feed.Flagged(ctx, "KP"))
	assert.False(t, feed.Flagged(ctx, "US"))
	assert.False(t, feed.Flagged(ctx, ""))
}

func TestStaticFeed_Replace(t *testing.T) {
	feed := sanctions.NewStaticFeed([]string{"IR"})
	ctx := context.Background()

	feed.Replace([]string{"SY"})

	assert.False(t, feed.Flagged(ctx, "IR"))
	assert.True(t, feed.Flagged(ctx, "SY"))
}

package validations

import (
	"context"
	"testing"

	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	pkgError "github.com/AzielCF/az-publish/pkg/error"
	"github.com/stretchr/testify/assert"
)

func TestValidateRunRequest(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateRunRequest(ctx, domainPublish.RunRequest{}))
	assert.NoError(t, ValidateRunRequest(ctx, domainPublish.RunRequest{BatchSize: 1}))
	assert.NoError(t, ValidateRunRequest(ctx, domainPublish.RunRequest{BatchSize: MaxBatchSize}))

	for _, size := range []int{-1, MaxBatchSize + 1} {
		err := ValidateRunRequest(ctx, domainPublish.RunRequest{BatchSize: size})
		var vErr pkgError.ValidationError
		assert.ErrorAs(t, err, &vErr, "batch size %d", size)
	}
}

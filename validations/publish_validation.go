package validations

import (
	"context"

	domainPublish "github.com/AzielCF/az-publish/domains/publish"
	pkgError "github.com/AzielCF/az-publish/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const MaxBatchSize = 500

func ValidateRunRequest(ctx context.Context, request domainPublish.RunRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.BatchSize, validation.Min(0), validation.Max(MaxBatchSize)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

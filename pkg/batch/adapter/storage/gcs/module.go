package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
)

func newDefaultProvider() *GCSProvider {
	return NewGCSProvider()
}

// Module contributes the GCS provider to the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		newDefaultProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(`group:"`+storageAdapter.ProviderGroup+`"`),
	)),
)

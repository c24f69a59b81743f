// Package writer persists output frames as CSV artifacts, with optional
// Parquet copies and a mirror to a publish connection.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/tigerroll/epiflow/internal/tabular"
	storage "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

const (
	moduleWriter   = "writer"
	csvContentType = "text/csv"
	parquetDir     = "parquet"
)

// ArtifactWriter uploads frames to the output storage connection. Each upload
// replaces the object atomically, so a failed run never leaves a truncated CSV.
type ArtifactWriter struct {
	resolver    storage.StorageConnectionResolver
	outputs     config.OutputsConfig
	compression parquet.CompressionCodec
	recorder    metrics.MetricRecorder
}

// NewArtifactWriter creates a writer from epiflow.outputs.
func NewArtifactWriter(cfg *config.Config, resolver storage.StorageConnectionResolver, recorder metrics.MetricRecorder) (*ArtifactWriter, error) {
	codec, err := compressionCodec(cfg.Epiflow.Outputs.ParquetCompression)
	if err != nil {
		return nil, exception.NewBatchError(moduleWriter, "invalid outputs.parquet_compression", err, false)
	}
	return &ArtifactWriter{
		resolver:    resolver,
		outputs:     cfg.Epiflow.Outputs,
		compression: codec,
		recorder:    recorder,
	}, nil
}

// ObjectName returns where an artifact called name is stored.
func (w *ArtifactWriter) ObjectName(name string) string {
	if w.outputs.Prefix == "" {
		return name
	}
	return path.Join(w.outputs.Prefix, name)
}

// Write stores f as name. The primary CSV must succeed; failures of the
// Parquet copy and the publish mirror are collected and returned together
// after every copy has been attempted.
func (w *ArtifactWriter) Write(ctx context.Context, name string, f *tabular.Frame) error {
	data, err := f.CSV()
	if err != nil {
		return exception.NewBatchErrorf(moduleWriter, err, "failed to encode '%s'", name)
	}
	objectName := w.ObjectName(name)
	if err := w.upload(ctx, w.outputs.StorageRef, objectName, data, csvContentType); err != nil {
		return err
	}
	logger.Infof("Wrote '%s' (%d rows) to '%s'.", objectName, len(f.Rows), w.outputs.StorageRef)

	var result *multierror.Error
	if w.outputs.Parquet {
		if err := w.writeParquet(ctx, name, f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if w.outputs.PublishRef != "" {
		if err := w.upload(ctx, w.outputs.PublishRef, objectName, data, csvContentType); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (w *ArtifactWriter) writeParquet(ctx context.Context, name string, f *tabular.Frame) error {
	data, err := EncodeParquet(f, w.compression)
	if err != nil {
		return exception.NewBatchErrorf(moduleWriter, err, "failed to encode '%s' as parquet", name)
	}
	base := strings.TrimSuffix(name, path.Ext(name)) + ".parquet"
	return w.upload(ctx, w.outputs.StorageRef, w.ObjectName(path.Join(parquetDir, base)), data, "application/octet-stream")
}

func (w *ArtifactWriter) upload(ctx context.Context, storageRef, objectName string, data []byte, contentType string) error {
	conn, err := w.resolver.ResolveStorageConnection(ctx, storageRef)
	if err != nil {
		return exception.NewBatchErrorf(moduleWriter, err, "failed to resolve storage '%s'", storageRef)
	}
	if err := conn.Upload(ctx, objectName, bytes.NewReader(data), contentType); err != nil {
		return exception.NewBatchErrorf(moduleWriter, err, "failed to upload '%s' to '%s'", objectName, storageRef)
	}
	w.recorder.RecordArtifact(ctx, storageRef, objectName, int64(len(data)))
	return nil
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", name)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instructions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrDocumentNotFound is returned when a contract cannot be located.
var ErrDocumentNotFound = errors.New("document not found")

// Resolver maps a contract name to a base64 document handle.
type Resolver interface {
	Resolve(ctx context.Context, contract string) (string, error)
}

// =============================================================================
// Directory Resolver
// =============================================================================

// DirResolver reads contracts from a local directory.
type DirResolver struct {
	Dir string
}

// Resolve implements Resolver. Contract names are confined to Dir.
func (d DirResolver) Resolve(ctx context.Context, contract string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.Base(filepath.Clean(contract))
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid contract name %q", contract)
	}

	raw, err := os.ReadFile(filepath.Join(d.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read contract %s: %w", name, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// =============================================================================
// GCS Resolver
// =============================================================================

// GCSResolver reads contracts from a Cloud Storage bucket.
type GCSResolver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSResolver creates a resolver for gs://bucket/prefix.
//
// # Inputs
//
//   - saKeyPath: Service account key file. Empty uses application default
//     credentials.
func NewGCSResolver(ctx context.Context, bucket, prefix, saKeyPath string) (*GCSResolver, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSResolver{client: client, bucket: bucket, prefix: prefix}, nil
}

// Resolve implements Resolver.
func (g *GCSResolver) Resolve(ctx context.Context, contract string) (string, error) {
	object := path.Join(g.prefix, path.Base(contract))
	reader, err := g.client.Bucket(g.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("%w: gs://%s/%s", ErrDocumentNotFound, g.bucket, object)
	}
	if err != nil {
		return "", fmt.Errorf("open gs://%s/%s: %w", g.bucket, object, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read gs://%s/%s: %w", g.bucket, object, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Close releases the storage client.
func (g *GCSResolver) Close() error {
	return g.client.Close()
}

var (
	_ Resolver = DirResolver{}
	_ Resolver = (*GCSResolver)(nil)
)

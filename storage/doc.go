// Package storage provides imageloop.Storage backends for generated images: a
// directory on an afero filesystem and an S3 bucket.
package storage

// Package artifact stores produced release archives in an S3-compatible
// bucket (AWS S3 or MinIO). Credentials come from the default AWS chain
// unless provided explicitly.
package artifact

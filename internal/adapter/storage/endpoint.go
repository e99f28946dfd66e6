// Package storage adapts the S3-compatible object store port (C1) to
// minio-go.
package storage

import "strings"

// storageSubdomainMarker flags endpoints fronted by the storage
// reverse-proxy subdomain, which serve S3 under a fixed path prefix
// instead of at the bucket root.
const storageSubdomainMarker = "storage."

// ResolveEndpoint derives the effective host:path the S3 client should
// dial from a configured MINIO_ENDPOINT value and the MINIO_USE_SSL flag,
// per the three-way rule:
//  1. endpoint contains the storage-subdomain marker -> rewrite to
//     "<host>/storage/v1/s3" (scheme stripped; minio-go takes a bare
//     host[:port][/path] and a separate secure bool).
//  2. endpoint already carries an "http"/"https" scheme -> used verbatim
//     (scheme stripped for minio-go, secure inferred from the scheme).
//  3. otherwise -> endpoint used as-is, secure taken from useSSL.
func ResolveEndpoint(rawEndpoint string, useSSL bool) (host string, secure bool) {
	endpoint := rawEndpoint

	if strings.Contains(endpoint, storageSubdomainMarker) {
		host := stripScheme(endpoint)
		host = strings.TrimRight(host, "/")
		return host + "/storage/v1/s3", true
	}

	if strings.HasPrefix(endpoint, "https://") {
		return stripScheme(endpoint), true
	}
	if strings.HasPrefix(endpoint, "http://") {
		return stripScheme(endpoint), false
	}

	return endpoint, useSSL
}

func stripScheme(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return s
}

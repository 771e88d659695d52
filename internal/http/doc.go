// Package http provides the HTTP transport used by trickle.
//
// This package handles:
//   - HEAD requests to discover size, ETag and a suggested filename
//   - Range requests for chunked downloads with caching disabled
//   - Mapping of non-success statuses to typed errors
//   - Building request headers from a bearer token and caller entries
//
// It performs no retries of its own; retry policy belongs to the caller.
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//	header := http.BuildHeader(token, map[string]string{"X-Trace": "1"})
//
//	// Get file info
//	info, err := client.Head(ctx, url, header)
//	// info.Size, info.ETag, info.AcceptsRanges, info.Filename
//
//	// Download a range
//	resp, err := client.GetRange(ctx, url, header, startByte, endByte)
//	defer resp.Body.Close()
package http

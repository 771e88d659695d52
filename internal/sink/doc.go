// Package sink provides the persistent destinations that downloads are
// written to.
//
// A destination is acquired once per transfer through an [Opener] and
// receives every committed chunk as a single append. [Bucket] stores the
// result as one object in any gocloud.dev/blob bucket; local directories use
// file:// URLs.
//
//	bkt, err := sink.OpenBucket(ctx, "file:///var/downloads")
//	defer bkt.Close()
//
//	w, err := sink.NewBucket(bkt, sink.Options{}).Open(ctx, "file.tar.gz")
package sink

package rest

import "testing"

func TestCompileSubstitutesInOrder(t *testing.T) {
	r := Compile("GET", "/channels/{}/messages/{}", 123, 456)
	if r.Path != "/channels/123/messages/456" {
		t.Errorf("path = %q", r.Path)
	}
	if r.Method != "GET" {
		t.Errorf("method = %q", r.Method)
	}
}

func TestCompileBucketKeepsMinorParams(t *testing.T) {
	a := Compile("DELETE", "/channels/{}/messages/{}", 123, 1)
	b := Compile("DELETE", "/channels/{}/messages/{}", 123, 2)
	c := Compile("DELETE", "/channels/{}/messages/{}", 999, 1)

	if a.Bucket != b.Bucket {
		t.Errorf("same channel should share a bucket: %q vs %q", a.Bucket, b.Bucket)
	}
	if a.Bucket == c.Bucket {
		t.Errorf("different channels should not share a bucket: %q", a.Bucket)
	}
	if a.Bucket != "DELETE /channels/123/messages/{}" {
		t.Errorf("bucket = %q", a.Bucket)
	}
}

func TestCompileMethodSplitsBuckets(t *testing.T) {
	get := Compile("GET", "/channels/{}", 123)
	del := Compile("DELETE", "/channels/{}", 123)
	if get.Bucket == del.Bucket {
		t.Errorf("buckets should differ by method: %q", get.Bucket)
	}
}

func TestCompileNoParams(t *testing.T) {
	r := Compile("GET", "/gateway")
	if r.Path != "/gateway" || r.Bucket != "GET /gateway" {
		t.Errorf("route = %+v", r)
	}
}

package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	store := newR2Store(fake, "manifests", "https://cdn.example.com/")

	url, err := store.Upload(context.Background(), "manifests/2026-03-14/packlist.csv", "text/csv", []byte("a,b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.example.com/manifests/2026-03-14/packlist.csv" {
		t.Errorf("url %s", url)
	}
	if aws.ToString(fake.input.Bucket) != "manifests" || aws.ToString(fake.input.ContentType) != "text/csv" {
		t.Errorf("input %+v", fake.input)
	}
	if string(fake.body) != "a,b\n" {
		t.Errorf("body %q", fake.body)
	}
}

func TestUploadWithoutPublicURL(t *testing.T) {
	store := newR2Store(&fakeS3{}, "bucket", "")
	url, err := store.Upload(context.Background(), "k.pdf", "application/pdf", nil)
	if err != nil || url != "s3://bucket/k.pdf" {
		t.Errorf("got %s, %v", url, err)
	}

	failing := newR2Store(&fakeS3{err: errors.New("denied")}, "bucket", "")
	if _, err := failing.Upload(context.Background(), "k", "text/plain", nil); err == nil {
		t.Error("upload error swallowed")
	}
}

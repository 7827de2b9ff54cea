package hitclient

import (
	"bytes"
	"context"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/hitsync/pkg/hittypes"
)

// the producer path: upload the object bytes first, then report the change,
// so that by the time any subscriber sees the event the object is fetchable.

func UploadObject(ctx context.Context, conf *ClientConfig, obj *hittypes.ContentObject) (string, error) {
	canonical, err := obj.MarshalCanonical()
	if err != nil {
		return "", err
	}

	hash, err := obj.Hash()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	if _, err := ezhttp.Put(
		ctx,
		conf.ApiPath("/objects/"+hash),
		ezhttp.SendBody(bytes.NewReader(canonical), "application/octet-stream")); err != nil {
		return "", err
	}

	return hash, nil
}

func ReportChange(ctx context.Context, conf *ClientConfig, change hittypes.ChangeNotice) error {
	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	_, err := ezhttp.Post(
		ctx,
		conf.ApiPath("/changes"),
		ezhttp.SendJson(&change))

	return err
}

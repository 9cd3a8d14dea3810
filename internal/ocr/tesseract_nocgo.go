//go:build !cgo

package ocr

const backendName = "none (built without cgo)"

func newClient(Config) (client, error) {
	return nil, ErrUnavailable
}

package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// StreamXML decodes every element whose local name matches localName and
// sends the decoded values to a channel. This is how 13F information tables
// and news feeds are consumed: both are flat sequences of one repeated
// element, and feeds can be large enough that decoding the whole document
// first is wasteful. Non-UTF-8 feeds are handled through the declared
// charset. Both channels are closed when the input is exhausted.
func StreamXML[T any](ctx context.Context, r io.Reader, localName string) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	go func() {
		defer close(outCh)
		defer close(errCh)

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xml: stream cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "xml: read token")
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != localName {
				continue
			}

			var item T
			if err := decoder.DecodeElement(&item, &se); err != nil {
				errCh <- eris.Wrapf(err, "xml: decode %s element", localName)
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xml: stream cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// charsetReader resolves a document's declared encoding through the WHATWG
// index, which covers the latin-1 and windows-1252 declarations legacy
// feeds still carry.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

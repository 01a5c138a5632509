package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/vmaxx/repetier-go/tool"
)

// UploadOptions steer one g-code upload. The caller fixes AutoPrint and
// ForcedQueue at submit time; they choose between the job URL and the
// model/save URL and whether the start-print marker field is written.
type UploadOptions struct {
	FileName    string
	Destination string // "local" or "sdcard"
	AutoPrint   bool
	ForcedQueue bool
	// OnProgress is called with (sent, total) byte counts while the body is
	// streaming. May be nil.
	OnProgress func(sent, total int64)
}

// progressReader reports bytes handed to the HTTP transport.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	cb    func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.cb != nil {
			p.cb(p.sent, p.total)
		}
	}
	return n, err
}

// UploadGCode posts the given g-code payload as a multipart form to the
// upload endpoint selected by opts.AutoPrint and opts.ForcedQueue. The caller
// cancels an in-flight upload through ctx; cancellation surfaces as a wrapped
// context error.
func (c *Client) UploadGCode(ctx context.Context, gcode []byte, opts UploadOptions) (*Response, error) {
	if opts.FileName == "" {
		return nil, fmt.Errorf("invalid parameters: file name must not be empty")
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("upload cancelled: %w", ctx.Err())
	default:
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("a", "upload"); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %v", err)
	}
	if opts.AutoPrint && !opts.ForcedQueue {
		// The auto-print path expects an extra field named after the file.
		if err := writer.WriteField(opts.FileName, "upload"); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %v", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, opts.FileName))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %v", err)
	}
	if _, err := part.Write(gcode); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %v", err)
	}

	target := "upload&name=" + url.QueryEscape(opts.FileName)
	base := c.endpoint.JobURL()
	if opts.ForcedQueue || !opts.AutoPrint {
		base = c.endpoint.SaveURL()
	}
	body := &progressReader{r: &buf, total: int64(buf.Len()), cb: opts.OnProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"?a="+target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %v", err)
	}
	req.ContentLength = body.total
	c.setHeaders(req, writer.FormDataContentType())

	tool.DefaultLogger.Debugf("Uploading %s (%d bytes, destination=%s)", opts.FileName, body.total, opts.Destination)
	resp, err := c.do(req, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("upload cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to send upload request: %v", err)
	}
	return resp, nil
}

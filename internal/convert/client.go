// Package convert talks to the remote job-queue conversion service:
// upload a video, poll its job until it is terminal, download the audio.
package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"fbzone/internal/media"
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	PollInterval    time.Duration
	MaxPolls        int
	RequestTimeout  time.Duration // Per status request
	UploadTimeout   time.Duration
	DownloadTimeout time.Duration
	UserAgent       string

	// Wait blocks between polls. nil sleeps on a timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// Status is the body of GET /status/{job_id}.
type Status struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Client is the conversion service client.
type Client struct {
	http   *resty.Client
	opts   Options
	logger *slog.Logger
}

// New creates a Client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 60
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 180 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 120 * time.Second
	}
	if opts.Wait == nil {
		opts.Wait = sleep
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	if opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", opts.UserAgent)
	}

	return &Client{http: httpClient, opts: opts, logger: logger}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Submit uploads the asset as multipart field "file" and returns the new job.
func (c *Client) Submit(ctx context.Context, asset *media.Asset) (*Job, error) {
	f, err := asset.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, c.opts.UploadTimeout)
	defer cancel()

	contentType := asset.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", "video"+asset.Ext(), contentType, f).
		Post("/upload")
	if err != nil {
		return nil, media.Network(fmt.Errorf("upload: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: upload returned status %d", media.ErrRemoteJob, resp.StatusCode())
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: parsing upload response: %v", media.ErrRemoteJob, err)
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("%w: no job_id in upload response", media.ErrRemoteJob)
	}

	c.logger.Debug("conversion job submitted", "job_id", out.JobID)
	return newJob(out.JobID), nil
}

// Poll fetches the job's remote status once.
func (c *Client) Poll(ctx context.Context, jobID string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("job_id", jobID).
		Get("/status/{job_id}")
	if err != nil {
		return Status{}, media.Network(fmt.Errorf("status: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return Status{}, media.Network(fmt.Errorf("status returned %d", resp.StatusCode()))
	}

	var st Status
	if err := json.Unmarshal(resp.Body(), &st); err != nil {
		return Status{}, fmt.Errorf("parsing status: %w", err)
	}
	return st, nil
}

// Await polls job on the fixed schedule until it is terminal or the poll
// budget is spent, in which case it is failed locally. A poll that errors
// counts against the budget and is otherwise ignored.
func (c *Client) Await(ctx context.Context, job *Job) error {
	for !job.Terminal() && job.Polls < c.opts.MaxPolls {
		st, err := c.Poll(ctx, job.ID)
		job.Polls++

		switch {
		case err == nil:
			job.Observe(st.Status, st.Error)
		case ctx.Err() != nil:
			return fmt.Errorf("polling job %s: %w", job.ID, ctx.Err())
		case job.Polls%6 == 1:
			c.logger.Debug("status poll failed, retrying", "job_id", job.ID, "err", err)
		}

		if job.Terminal() || job.Polls >= c.opts.MaxPolls {
			break
		}
		if job.Polls%6 == 0 {
			c.logger.Info("converting", "job_id", job.ID, "elapsed", time.Duration(job.Polls)*c.opts.PollInterval)
		}
		if err := c.opts.Wait(ctx, c.opts.PollInterval); err != nil {
			return fmt.Errorf("polling job %s: %w", job.ID, err)
		}
	}

	if !job.Terminal() {
		job.Expire()
	}
	if job.State == Failed {
		return fmt.Errorf("%w: job %s: %s", media.ErrRemoteJob, job.ID, job.Reason)
	}
	return nil
}

// Fetch downloads a completed job's result to dst.
func (c *Client) Fetch(ctx context.Context, job *Job, dst string) error {
	if job.State != Completed {
		return fmt.Errorf("job %s is %s, not completed", job.ID, job.State)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.DownloadTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(job.ResultLocation)
	if err != nil {
		return media.Network(fmt.Errorf("download: %w", err))
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: download returned status %d", media.ErrRemoteJob, resp.StatusCode())
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(dst)
		return media.Network(fmt.Errorf("writing %s: %w", dst, err))
	}
	return out.Close()
}

// Convert runs the whole pipeline for asset and writes the audio to dst.
// The job is discarded when Convert returns.
func (c *Client) Convert(ctx context.Context, asset *media.Asset, dst string) error {
	job, err := c.Submit(ctx, asset)
	if err != nil {
		return err
	}
	if err := c.Await(ctx, job); err != nil {
		return err
	}
	return c.Fetch(ctx, job, dst)
}

package strategy

import (
	"context"
	"errors"
	"fmt"

	"fbzone/internal/media"
)

var errNoInput = errors.New("no input video")

// Transcode extracts the audio track with the local codec.
type Transcode struct {
	Tier
	Codec Codec
}

func (s *Transcode) Attempt(ctx context.Context, req Request) Result {
	if req.Input == nil {
		return Soft(errNoInput)
	}
	out, err := req.Workspace.Path("audio.mp3")
	if err != nil {
		return Soft(err)
	}
	if err := s.Codec.ExtractAudio(ctx, req.Input.Path, out); err != nil {
		return Soft(fmt.Errorf("local transcode: %w", err))
	}
	return audioResult(out, "local-transcode")
}

// Remote converts through the remote job-queue service.
type Remote struct {
	Tier
	Converter Converter
}

func (s *Remote) Attempt(ctx context.Context, req Request) Result {
	if req.Input == nil {
		return Soft(errNoInput)
	}
	out, err := req.Workspace.Path("audio-remote.mp3")
	if err != nil {
		return Soft(err)
	}
	if err := s.Converter.Convert(ctx, req.Input, out); err != nil {
		return Soft(fmt.Errorf("remote conversion: %w", err))
	}
	return audioResult(out, "remote-conversion")
}

func audioResult(path, origin string) Result {
	asset, err := media.NewAsset(path, "audio/mpeg", origin, nil)
	if err != nil {
		return Soft(err)
	}
	return Succeed(Payload{Asset: asset})
}

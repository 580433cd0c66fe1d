package service

import (
	"context"
	"errors"
	"net"
	"net/url"
	"path"
	"strconv"

	"github.com/xiaot623/gogo/segmenter/internal/artifact"
	"github.com/xiaot623/gogo/segmenter/internal/domain"
)

// LatestOutput resolves the newest artifact without invoking the tool.
func (s *Service) LatestOutput(ctx context.Context) (*domain.OutputFile, error) {
	art, err := s.artifacts.Latest(ctx)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNoRunDirectories):
			return nil, domain.ErrNoOutputDirs
		case errors.Is(err, artifact.ErrNoArtifacts):
			return nil, domain.ErrNoOutputImages
		default:
			return nil, err
		}
	}

	return &domain.OutputFile{
		URL:     s.ArtifactURL(art),
		Run:     art.Run,
		Name:    art.Name,
		ModTime: art.ModTime,
	}, nil
}

// ArtifactURL builds the absolute URL under which the static mount serves art.
func (s *Service) ArtifactURL(art *artifact.Artifact) string {
	u := url.URL{
		Scheme: s.config.PublicScheme,
		Host:   net.JoinHostPort(s.config.AdvertisedHost, strconv.Itoa(s.config.AdvertisedPort)),
		Path:   path.Join("/", s.config.StaticPrefix, art.Run, art.Name),
	}
	return u.String()
}

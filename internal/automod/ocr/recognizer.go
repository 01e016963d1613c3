package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Scanner preprocesses images before handing them to a Recognizer.
type Scanner struct {
	rec  Recognizer
	opts Options
}

func NewScanner(rec Recognizer, opts Options) *Scanner {
	return &Scanner{rec: rec, opts: opts}
}

func (s *Scanner) Scan(ctx context.Context, raw []byte) (string, error) {
	clean, err := Preprocess(raw, s.opts)
	if err != nil {
		return "", err
	}
	text, err := s.rec.Recognize(ctx, clean)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

type VisionOptions struct {
	// CredentialsFile is a service account JSON key path.
	CredentialsFile string
	// CredentialsJSON holds the service account key inline.
	CredentialsJSON string
	// AccessToken is a pre-issued OAuth2 token, used when no key is set.
	AccessToken string
	Timeout     time.Duration
}

// VisionRecognizer calls Google Cloud Vision text detection.
type VisionRecognizer struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

func NewVisionRecognizer(ctx context.Context, opts VisionOptions) (*VisionRecognizer, error) {
	var clientOpts []option.ClientOption
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	case opts.AccessToken != "":
		clientOpts = append(clientOpts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: opts.AccessToken,
			TokenType:   "Bearer",
		})))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &VisionRecognizer{client: client, timeout: timeout}, nil
}

func (v *VisionRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation != nil {
		return r0.FullTextAnnotation.Text, nil
	}
	if len(r0.TextAnnotations) > 0 {
		return r0.TextAnnotations[0].Description, nil
	}
	return "", nil
}

func (v *VisionRecognizer) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

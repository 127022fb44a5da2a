package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	mw "github.com/tphakala/storm-intake/internal/api/middleware"
	v1 "github.com/tphakala/storm-intake/internal/api/v1"
	"github.com/tphakala/storm-intake/internal/httpclient"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

const defaultTimeout = 2 * time.Minute

// maxResponseSize caps how much of a server response is read
const maxResponseSize = 1 << 20

// Report is one report read from the command line
type Report struct {
	Fields submission.Fields
	Files  []string // local paths of attachments
}

// Client posts reports to a running intake server
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// NewClient creates a client. Its cookie jar carries the anti-forgery
// cookie from the challenge request to the submission.
func NewClient(baseURL string, cfg httpclient.Config) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	hc, err := httpclient.New(&cfg)
	if err != nil {
		return nil, err
	}
	hc.SetAfterResponseHook(func(req *http.Request, resp *http.Response, err error) {
		log := logger.Global().Module("submit")
		if err != nil {
			log.Debug("request failed", logger.String("url", req.URL.Path), logger.Error(err))
			return
		}
		log.Debug("response received", logger.String("url", req.URL.Path), logger.Int("status", resp.StatusCode))
	})

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.Close()
}

// Challenge fetches captcha operands and the anti-forgery token
func (c *Client) Challenge(ctx context.Context) (*v1.ChallengeResponse, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/v1/challenge")
	if err != nil {
		return nil, fmt.Errorf("challenge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("challenge request failed: %s", resp.Status)
	}

	var challenge v1.ChallengeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&challenge); err != nil {
		return nil, fmt.Errorf("invalid challenge response: %w", err)
	}
	if challenge.CSRFToken == "" {
		return nil, fmt.Errorf("challenge response carries no security token")
	}
	return &challenge, nil
}

// Submit solves a fresh challenge and posts the report. Server side
// rejections come back as a response with Success false, not as an error.
func (c *Client) Submit(ctx context.Context, report Report) (*v1.Response, error) {
	challenge, err := c.Challenge(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeReport(report, challenge)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set(mw.CSRFHeader, challenge.CSRFToken)

	resp, err := c.http.Post(ctx, c.baseURL+"/api/v1/submissions", contentType, body, header)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	var result v1.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		return nil, fmt.Errorf("unexpected server response (%s): %w", resp.Status, err)
	}
	return &result, nil
}

// encodeReport builds the multipart body the browser form would send.
// Serial and time get the same input masks the form applies.
func encodeReport(report Report, challenge *v1.ChallengeResponse) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	f := report.Fields
	values := [][2]string{
		{submission.FieldContactName, f.ContactName},
		{submission.FieldContactEmail, f.ContactEmail},
		{submission.FieldContactPhone, f.ContactPhone},
		{submission.FieldDealerName, f.DealerName},
		{submission.FieldSerialNumber, submission.MaskSerial(f.SerialNumber)},
		{submission.FieldIssuesDescription, f.IssuesDescription},
		{submission.FieldIncidentDate, f.IncidentDate},
		{submission.FieldIncidentTime, submission.MaskTime(f.IncidentTime)},
		{submission.FieldSparePartNumber, f.SparePartNumber},
		{v1.FieldCaptchaA, strconv.Itoa(challenge.A)},
		{v1.FieldCaptchaB, strconv.Itoa(challenge.B)},
		{submission.FieldCaptchaAnswer, strconv.Itoa(challenge.Answer())},
	}
	for _, kv := range values {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}

	for _, path := range report.Files {
		if err := attachFile(w, path); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer file.Close()

	part, err := w.CreateFormFile("files[]", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read attachment %s: %w", filepath.Base(path), err)
	}
	return nil
}

// fieldSetters maps form keys to the report field they fill
var fieldSetters = map[string]func(*submission.Fields, string){
	submission.FieldContactName:       func(f *submission.Fields, v string) { f.ContactName = v },
	submission.FieldContactEmail:      func(f *submission.Fields, v string) { f.ContactEmail = v },
	submission.FieldContactPhone:      func(f *submission.Fields, v string) { f.ContactPhone = v },
	submission.FieldDealerName:        func(f *submission.Fields, v string) { f.DealerName = v },
	submission.FieldSerialNumber:      func(f *submission.Fields, v string) { f.SerialNumber = v },
	submission.FieldIssuesDescription: func(f *submission.Fields, v string) { f.IssuesDescription = v },
	submission.FieldIncidentDate:      func(f *submission.Fields, v string) { f.IncidentDate = v },
	submission.FieldIncidentTime:      func(f *submission.Fields, v string) { f.IncidentTime = v },
	submission.FieldSparePartNumber:   func(f *submission.Fields, v string) { f.SparePartNumber = v },
}

// ParseFields turns key=value pairs into report fields
func ParseFields(pairs []string) (submission.Fields, error) {
	var fields submission.Fields
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fields, fmt.Errorf("invalid field %q, expected key=value", pair)
		}
		set, known := fieldSetters[strings.TrimSpace(key)]
		if !known {
			return fields, fmt.Errorf("unknown field %q, valid fields: %s",
				key, strings.Join(slices.Sorted(maps.Keys(fieldSetters)), ", "))
		}
		// \n lets a multi-line description pass through a single flag
		set(&fields, strings.ReplaceAll(value, `\n`, "\n"))
	}
	return fields, nil
}

// PrintResult writes the outcome for a person at a terminal and reports
// whether the submission succeeded
func PrintResult(out io.Writer, res *v1.Response) bool {
	if res.Success {
		fmt.Fprintf(out, "Report submitted. Case number: %s\n", res.Data.CaseNumber)
		return true
	}

	if res.Data.Message != "" {
		fmt.Fprintln(out, res.Data.Message)
	}
	for _, key := range slices.Sorted(maps.Keys(res.Data.Errors)) {
		fmt.Fprintf(out, "  %s: %s\n", key, res.Data.Errors[key])
	}
	return false
}

// Command creates the command that posts a report to a running server
func Command() *cobra.Command {
	var (
		server  string
		fields  []string
		files   []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a defect report to a running server",
		Long: `Submit a defect report to a running intake server, as the web form would.

Example:
  storm-intake submit --server=http://localhost:8080 \
    --field contact_name="Jane Doe" --field contact_email=jane@example.com \
    --field contact_phone="+1 555 0100" --field dealer_name="Acme Robots" \
    --field serial_number=HKX1234567890123456 --field incident_date=2026-03-04 \
    --field incident_time=0930 --field issues_description="Blade motor stops" \
    --file photo.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := ParseFields(fields)
			if err != nil {
				return err
			}

			client, err := NewClient(server, httpclient.Config{DefaultTimeout: timeout})
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Submit(cmd.Context(), Report{Fields: parsed, Files: files})
			if err != nil {
				return err
			}

			if !PrintResult(cmd.OutOrStdout(), res) {
				return fmt.Errorf("report was not accepted")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Base URL of the intake server")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "Report field as key=value, repeatable")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Attachment path, repeatable")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "Request timeout")

	return cmd
}

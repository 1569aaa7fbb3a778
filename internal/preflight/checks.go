package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rwese/obsidian-postprocessor/internal/config"
	"github.com/rwese/obsidian-postprocessor/internal/deps"
)

const endpointTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckProcessor evaluates the dependencies of one processor definition.
func CheckProcessor(ctx context.Context, name string, p config.Processor) []Result {
	label := "Processor " + name
	switch p.Type {
	case config.ProcessorHTTP:
		return []Result{CheckHTTPEndpoint(ctx, label, p.URL, p.APIKey)}
	case config.ProcessorScript:
		return binaryResults(label, []deps.Requirement{{
			Name:        label,
			Command:     p.Command,
			Description: "script processor command",
		}})
	case config.ProcessorWhisperX:
		return binaryResults(label, []deps.Requirement{{
			Name:        label,
			Command:     "uvx",
			Description: "Required for WhisperX-driven transcription",
		}})
	default:
		return []Result{{Name: label, Detail: fmt.Sprintf("unknown type %q", p.Type)}}
	}
}

func binaryResults(label string, reqs []deps.Requirement) []Result {
	statuses := deps.CheckBinaries(reqs)
	results := make([]Result, 0, len(statuses))
	for _, st := range statuses {
		if st.Available {
			results = append(results, Result{Name: label, Passed: true, Detail: st.Path})
			continue
		}
		results = append(results, Result{Name: label, Detail: st.Detail, Optional: st.Optional})
	}
	return results
}

// CheckHTTPEndpoint verifies the service answers before attachments are
// uploaded. Any response below 500 counts as reachable, except that 401 and
// 403 indicate a bad API key.
func CheckHTTPEndpoint(ctx context.Context, name, baseURL, apiKey string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: endpointTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("auth failed (%d)", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("service unhealthy (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: base + " reachable"}
	}
}

func summarizeHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	return err.Error()
}

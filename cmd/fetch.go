package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/config"
	"github.com/sells-group/jep-dashboard/internal/fetcher"
	"github.com/sells-group/jep-dashboard/internal/loader"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the dataset from fetch.url into source.path",
	Long:  "Downloads over http(s) with retries and ETag revalidation, or over ftp. A ZIP download is unpacked to its single dataset member. The file is validated before it replaces the current source.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := runFetch(cmd.Context(), cfg, fetchForce)
		if err != nil {
			return err
		}
		if !res.Changed {
			fmt.Fprintf(os.Stdout, "%s is up to date\n", res.Path)
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s updated (%d JEPs)\n", res.Path, res.Rows)
		return nil
	},
}

// fetchResult describes one fetch run.
type fetchResult struct {
	Path    string
	Changed bool
	Rows    int
}

func etagPath(source string) string {
	return source + ".etag"
}

func runFetch(ctx context.Context, c *config.Config, force bool) (fetchResult, error) {
	res := fetchResult{Path: c.Source.Path}

	httpOpts := fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
		RatePerSec: c.Fetch.RatePerSec,
	}
	f, err := fetcher.ForURL(c.Fetch.URL, httpOpts, fetcher.FTPOptions{Timeout: httpOpts.Timeout})
	if err != nil {
		return res, err
	}

	dir := filepath.Dir(c.Source.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, eris.Wrapf(err, "fetch: create %s", dir)
	}
	tmp, err := os.MkdirTemp(dir, ".jepdash-fetch-")
	if err != nil {
		return res, eris.Wrap(err, "fetch: temp dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	download := filepath.Join(tmp, "download")
	var etag string

	if hf, ok := f.(*fetcher.HTTPFetcher); ok {
		prev := ""
		if !force {
			if b, err := os.ReadFile(etagPath(c.Source.Path)); err == nil {
				prev = strings.TrimSpace(string(b))
			}
			if _, err := os.Stat(c.Source.Path); err != nil {
				prev = ""
			}
		}
		body, newTag, changed, err := hf.DownloadIfChanged(ctx, c.Fetch.URL, prev)
		if err != nil {
			return res, err
		}
		if !changed {
			zap.L().Info("fetch: not modified", zap.String("url", c.Fetch.URL))
			return res, nil
		}
		err = writeBody(download, body)
		if err != nil {
			return res, err
		}
		etag = newTag
	} else if _, err := f.DownloadToFile(ctx, c.Fetch.URL, download); err != nil {
		return res, err
	}

	candidate := download
	isZip, err := fetcher.IsZIP(download)
	if err != nil {
		return res, err
	}
	if isZip && !strings.EqualFold(filepath.Ext(c.Source.Path), ".xlsx") {
		candidate, err = fetcher.ExtractDataset(download, c.Fetch.Member, tmp)
		if err != nil {
			return res, err
		}
	}

	opts, err := loaderOptions(c)
	if err != nil {
		return res, err
	}
	data, err := os.ReadFile(candidate)
	if err != nil {
		return res, eris.Wrap(err, "fetch: read download")
	}
	tbl, err := loader.Parse(ctx, data, c.Source.Path, opts)
	if err != nil {
		return res, eris.Wrap(err, "fetch: downloaded file does not parse")
	}

	if err := os.Rename(candidate, c.Source.Path); err != nil {
		return res, eris.Wrapf(err, "fetch: replace %s", c.Source.Path)
	}
	if etag != "" {
		if err := os.WriteFile(etagPath(c.Source.Path), []byte(etag+"\n"), 0o644); err != nil {
			zap.L().Warn("fetch: save etag", zap.Error(err))
		}
	}

	zap.L().Info("fetch: source updated",
		zap.String("url", c.Fetch.URL),
		zap.String("path", c.Source.Path),
		zap.Int("rows", tbl.Len()),
	)
	res.Changed = true
	res.Rows = tbl.Len()
	return res, nil
}

func writeBody(path string, body io.ReadCloser) error {
	defer body.Close() //nolint:errcheck
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "fetch: create download")
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrap(err, "fetch: write download")
	}
	return eris.Wrap(out.Close(), "fetch: close download")
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "ignore the saved ETag and download again")
	rootCmd.AddCommand(fetchCmd)
}

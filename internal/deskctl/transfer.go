package deskctl

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/merchantdesk/internal/filex"
	"github.com/dmitrijs2005/merchantdesk/internal/netx"
)

type apiFlags struct {
	server string
	token  string
}

func (f *apiFlags) bind(cmd *cobra.Command) {
	server := os.Getenv("MERCHANTDESK_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.Flags().StringVar(&f.server, "server", server, "API base URL (env MERCHANTDESK_SERVER)")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("MERCHANTDESK_TOKEN"), "bearer token (env MERCHANTDESK_TOKEN)")
}

func (f *apiFlags) client() (*apiClient, error) {
	if f.token == "" {
		return nil, errors.New("a bearer token is required (--token or MERCHANTDESK_TOKEN)")
	}
	return newAPIClient(f.server, f.token), nil
}

// detectMime sniffs the content; the server decides whether it is allowed.
func detectMime(p string) (string, error) {
	m, err := mimetype.DetectFile(p)
	if err != nil {
		return "", err
	}
	base, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(base), nil
}

func uploadCmd() *cobra.Command {
	var (
		api      apiFlags
		appID    int64
		mime     string
		category string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document to a draft application and confirm it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := api.client()
			if err != nil {
				return err
			}
			if appID <= 0 {
				return errors.New("--application is required")
			}

			p := args[0]
			fi, err := os.Stat(p)
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return fmt.Errorf("%s is a directory", p)
			}
			if mime == "" {
				if mime, err = detectMime(p); err != nil {
					return fmt.Errorf("detect mime type: %w", err)
				}
			}
			name := filepath.Base(p)

			ctx := cmd.Context()
			g, err := c.uploadURL(ctx, appID, name, mime, fi.Size())
			if err != nil {
				return err
			}

			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := netx.PutPresigned(ctx, c.http, g.UploadURL, g.Headers, f, fi.Size()); err != nil {
				return err
			}

			d, err := c.confirm(ctx, appID, g.FileKey, category, name, mime, fi.Size())
			if err != nil {
				return fmt.Errorf("uploaded %s but confirmation failed: %w", g.FileKey, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d stored as %s\n", d.ID, d.FileKey)
			return nil
		},
	}

	api.bind(cmd)
	cmd.Flags().Int64Var(&appID, "application", 0, "application id")
	cmd.Flags().StringVar(&mime, "mime", "", "override the detected mime type")
	cmd.Flags().StringVar(&category, "category", "", "crn_document, tax_document, id_document or other (default other)")

	return cmd
}

// localName picks a safe local file name for a download.
func localName(fileName, fileKey string) string {
	for _, n := range []string{filepath.Base(fileName), path.Base(fileKey)} {
		if n != "" && n != "." && n != ".." && n != "/" && n != string(filepath.Separator) {
			return n
		}
	}
	return "document"
}

func downloadCmd() *cobra.Command {
	var (
		api apiFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "download <file_key>",
		Short: "Download a document through a signed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := api.client()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			g, err := c.downloadURL(ctx, args[0])
			if err != nil {
				return err
			}

			body, err := c.fetch(ctx, g.DownloadURL)
			if err != nil {
				return err
			}
			defer body.Close()

			dst, err := filex.SaveAs(out, localName(g.FileName, args[0]), body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s, %d bytes)\n", dst, g.MimeType, g.SizeBytes)
			return nil
		},
	}

	api.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")

	return cmd
}

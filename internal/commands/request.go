package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gaborage/finbricks/app"
	"github.com/gaborage/finbricks/httpclient"
)

type requestOptions struct {
	data           string
	headers        []string
	idempotencyKey string
	idempotent     bool
	include        bool
}

func newRequestCommand(root *rootOptions, verb string) *cobra.Command {
	opts := &requestOptions{}
	method := strings.ToUpper(verb)

	hasBody := method != "GET" && method != "DELETE"
	example := fmt.Sprintf(`  finctl %s /accounts -H "Accept-Language: en"`, verb)
	if hasBody {
		example = fmt.Sprintf(`  finctl %s /budgets -d @budget.json --idempotent`, verb)
	}

	cmd := &cobra.Command{
		Use:     verb + " PATH",
		Short:   fmt.Sprintf("Send a %s request and print the response body", method),
		Example: example,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.build(args[0])
			if err != nil {
				return err
			}
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.Client().Do(ctx, method, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.include {
					fmt.Fprintf(out, "%d (attempts: %d)\n", resp.StatusCode, resp.Stats.Attempts)
				}
				_, err = out.Write(resp.Body)
				if err == nil && len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
					_, err = fmt.Fprintln(out)
				}
				return err
			})
		},
	}

	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `Extra header as "Name: value" (repeatable)`)
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "Print the status code and attempt count before the body")
	if hasBody {
		cmd.Flags().StringVarP(&opts.data, "data", "d", "", "Request body, or @file to read it from a file")
		cmd.Flags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key header, making the request safe to retry")
		cmd.Flags().BoolVar(&opts.idempotent, "idempotent", false, "Send a generated Idempotency-Key")
	}
	return cmd
}

func (o *requestOptions) build(path string) (*httpclient.Request, error) {
	req := &httpclient.Request{URL: path, Headers: make(map[string]string, len(o.headers))}

	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	switch {
	case o.idempotencyKey != "":
		req.Headers[httpclient.HeaderIdempotencyKey] = o.idempotencyKey
	case o.idempotent:
		req.Headers[httpclient.HeaderIdempotencyKey] = uuid.NewString()
	}

	if file, ok := strings.CutPrefix(o.data, "@"); ok {
		body, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = body
	} else if o.data != "" {
		req.Body = []byte(o.data)
	}
	return req, nil
}

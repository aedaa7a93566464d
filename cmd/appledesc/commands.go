package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	appledesc "github.com/EC-DIGIT-CSIRC/sysdiagnose-sub000"
	"github.com/EC-DIGIT-CSIRC/sysdiagnose-sub000/internal/config"
	"github.com/EC-DIGIT-CSIRC/sysdiagnose-sub000/internal/logging"
)

// runner carries what the global flags configured into the commands.
type runner struct {
	stdin   io.Reader
	cfg     config.Config
	log     *logging.Logger
	decoder *appledesc.Decoder
	treeDec *appledesc.TreeDecoder
}

func (r *runner) setup(c *cli.Context, stderr io.Writer) error {
	cfg := config.Config{
		LogLevel:    c.String("log-level"),
		Format:      strings.ToLower(c.String("format")),
		MaxDepth:    c.Int("max-depth"),
		MaxLineSize: c.Int("max-line-size"),
		NonASCII:    c.String("non-ascii"),
		Strategy:    c.String("strategy"),
		Merge:       c.String("merge"),
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	r.cfg = cfg
	r.log = logging.New(stderr, cfg.LogLevel)

	d, err := cfg.Decoder()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	r.decoder = d.WithLogger(r.log.Logger)
	t, err := cfg.TreeDecoder(r.decoder)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	r.treeDec = t.WithLogger(r.log.Logger)
	r.log.Debug("appledesc: configured", "format", cfg.Format, "strategy", cfg.Strategy, "non_ascii", cfg.NonASCII)
	return nil
}

func (r *runner) summary() {
	if r.log == nil {
		return
	}
	if n := r.log.Warnings(); n > 0 {
		r.log.Info("appledesc: input decoded with anomalies", "count", n)
	}
}

// text returns the command arguments joined by spaces, or stdin when there
// are none or the only one is "-".
func (r *runner) text(c *cli.Context) (string, error) {
	if c.NArg() == 0 || (c.NArg() == 1 && c.Args().First() == "-") {
		data, err := io.ReadAll(r.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	return strings.Join(c.Args().Slice(), " "), nil
}

func (r *runner) fragment(c *cli.Context) error {
	text, err := r.text(c)
	if err != nil {
		return err
	}
	v := r.decoder.Decode(text)
	if r.cfg.Format == "yaml" {
		return writeYAML(c.App.Writer, v)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return r.writeJSON(c.App.Writer, data)
}

func (r *runner) tree(c *cli.Context) error {
	in := r.stdin
	if name := c.Args().First(); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("open dump: %w", err)
		}
		defer f.Close()
		in = f
	}

	forest, err := r.treeDec.Parse(in)
	if err != nil {
		return err
	}
	r.log.Debug("appledesc: tree decoded", "roots", forest.Len())

	w := c.App.Writer
	path := c.String("select")
	if path == "" {
		switch r.cfg.Format {
		case "yaml":
			return writeYAML(w, forest)
		case "jsonl":
			return appledesc.WriteJSONL(w, forest)
		}
		data, err := forest.MarshalJSON()
		if err != nil {
			return err
		}
		return r.writeJSON(w, data)
	}

	nodes := appledesc.Select(forest, path)
	r.log.Debug("appledesc: nodes selected", "path", path, "count", len(nodes))
	switch r.cfg.Format {
	case "yaml":
		return writeYAML(w, nodes)
	case "jsonl":
		for _, n := range nodes {
			data, err := n.MarshalJSON()
			if err != nil {
				return err
			}
			if err := r.writeJSON(w, data); err != nil {
				return err
			}
		}
		return nil
	}
	// Assembled by hand so '<' and '>' stay unescaped.
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, n := range nodes {
		data, err := n.MarshalJSON()
		if err != nil {
			return err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return r.writeJSON(w, buf.Bytes())
}

func (r *runner) detect(c *cli.Context) error {
	text, err := r.text(c)
	if err != nil {
		return err
	}
	m, ok := appledesc.Detect(text)
	if !ok {
		_, err := fmt.Fprintln(c.App.Writer, "no bracketed span: opaque text")
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s (%s) [%d:%d] %s\n", m.Kind, m.Class(), m.Start, m.End, text[m.Start:m.End])
	return err
}

// writeJSON indents for the json format and keeps one line for jsonl.
func (r *runner) writeJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if r.cfg.Format == "json" {
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
	} else {
		buf.Write(data)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

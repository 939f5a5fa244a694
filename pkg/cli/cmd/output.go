package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/rzbill/subrelay/pkg/types"
	"gopkg.in/yaml.v3"
)

// outputResource writes configurations in the format chosen by --output.
func outputResource(out io.Writer, resource interface{}) error {
	switch outputFormat {
	case "json":
		return outputJSON(out, resource)
	case "yaml":
		return outputYAML(out, resource)
	case "table", "":
		return outputTable(out, resource)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputTable(out io.Writer, resource interface{}) error {
	switch r := resource.(type) {
	case []*types.Configuration:
		return NewResourceTable(out).RenderConfigs(r)
	case *types.Configuration:
		return outputConfigDetail(out, r)
	default:
		return fmt.Errorf("unsupported resource type for table output")
	}
}

func outputConfigDetail(out io.Writer, c *types.Configuration) error {
	tag := c.ProxyTag
	if !c.HasProxyTag() {
		tag = format.Muted("none")
	}
	fmt.Fprintln(out, format.KeyValue("ID", c.ID))
	fmt.Fprintln(out, format.KeyValue("Name", c.Name))
	fmt.Fprintln(out, format.KeyValue("Backend", c.BackendURL))
	fmt.Fprintln(out, format.KeyValue("Proxy tag", tag))
	fmt.Fprintln(out, format.KeyValue("Last saved", c.LastSaved))
	fmt.Fprintln(out, format.KeyValue("Subscriptions", joinLines(c.SubscribeURLs, "               ")))
	return nil
}

func outputJSON(out io.Writer, resource interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resource); err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return nil
}

func outputYAML(out io.Writer, resource interface{}) error {
	data, err := yaml.Marshal(resource)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	_, err = out.Write(data)
	return err
}

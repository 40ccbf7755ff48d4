package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/jamesainslie/chaff/pkg/chaff/manifest"
	"github.com/jamesainslie/chaff/pkg/chaff/output"
)

// formatter returns the formatter selected by -o and --template.
func formatter() (output.Formatter, error) {
	outFormat := viper.GetString("output")
	if outFormat == "" {
		outFormat = "pretty"
	}

	if outFormat == "template" {
		tmplStr := viper.GetString("template")
		if tmplStr == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmplStr), nil
	}

	f, err := output.Get(outFormat)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", outFormat, output.Available())
	}
	return f, nil
}

func printResult(r *output.Result) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	return f.Format(os.Stdout, r)
}

// cleanupEntry records the removal of files from a run.
func cleanupEntry(runID, target string, files []manifest.FileRecord) manifest.Entry {
	now := time.Now().UTC()
	for i := range files {
		files[i].RemovedAt = now
	}
	return manifest.Entry{RunID: runID, Target: target, Files: files}
}

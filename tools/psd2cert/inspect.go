package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/botsman/psd2cert/app/cert"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the PSD2 facts of a certificate",
		Long:  "Reads a PEM or DER certificate (or chain, end-entity first) and prints its organization identifier, roles, competent authority and QC statements.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), data, opts.jsonOutput)
		},
	}
}

func runInspect(w io.Writer, data []byte, jsonOutput bool) error {
	chain, err := cert.ParseCerts(data)
	if err != nil {
		return fmt.Errorf("parsing certificate: %w", err)
	}
	info, err := cert.NewPsd2CertInfo(chain)
	if err != nil {
		return fmt.Errorf("decoding certificate: %w", err)
	}
	summary := info.Summary()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(w, summary)
	return nil
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	labelColor.Fprintf(w, "  %-16s", label+":")
	fmt.Fprintln(w, value)
}

func printList(w io.Writer, label string, values []string) {
	if len(values) == 0 {
		return
	}
	printField(w, label, strings.Join(values, ", "))
}

func printSummary(w io.Writer, s cert.Summary) {
	headerColor.Fprintln(w, "Certificate")
	printField(w, "Subject", s.Subject)
	printField(w, "Issuer", s.Issuer)
	printField(w, "Serial", s.Serial)
	printField(w, "SHA-256", s.Sha256)
	printField(w, "SHA-1", s.Sha1)
	printField(w, "Valid", s.NotBefore.Format("2006-01-02")+" - "+s.NotAfter.Format("2006-01-02"))
	printList(w, "CRL", s.CRLs)
	printList(w, "CA issuers", s.CAIssuers)
	printList(w, "OCSP", s.OCSP)

	fmt.Fprintln(w)
	headerColor.Fprintln(w, "PSD2")
	labelColor.Fprintf(w, "  %-16s", "PSD2:")
	if s.IsPsd2 {
		successColor.Fprintln(w, "yes")
	} else {
		errorColor.Fprintln(w, "no")
	}
	printField(w, "EU qualified", fmt.Sprintf("%t", s.EUQualified))
	printField(w, "QSCD", fmt.Sprintf("%t", s.SSCD))
	printField(w, "Type", s.CertType)
	printField(w, "Usage", string(s.Usage))
	printField(w, "Organization", s.OrganizationID)
	printField(w, "Application", s.ApplicationID)
	roles := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		roles = append(roles, r.String())
	}
	printList(w, "Roles", roles)
	if s.NCA != nil {
		printField(w, "NCA", fmt.Sprintf("%s (%s)", s.NCA.Name, s.NCA.Id))
	}

	if len(s.QCStatements) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "QC statements")
		for _, oid := range s.QCStatements {
			fmt.Fprintf(w, "  %s\n", oid)
		}
		if s.RetentionPeriod != nil {
			printField(w, "Retention", fmt.Sprintf("%d years", *s.RetentionPeriod))
		}
		for _, loc := range s.PDSLocations {
			printField(w, "PDS", fmt.Sprintf("%s [%s]", loc.URL, loc.Language))
		}
	}
	for _, e := range s.Errors {
		errorColor.Fprintf(w, "  error: %s\n", e)
	}
}

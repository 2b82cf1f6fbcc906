package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/botsman/psd2cert/app/eidas"
	"github.com/botsman/psd2cert/app/psd2"
)

type qcStatementsOptions struct {
	certType  string
	roles     []string
	ncaName   string
	ncaID     string
	qualified bool
}

func joinNames[T fmt.Stringer](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}

func newQCStatementsCmd() *cobra.Command {
	opts := &qcStatementsOptions{}
	cmd := &cobra.Command{
		Use:   "qcstatements",
		Short: "Encode a qCStatements extension value",
		Long:  "Builds the qCStatements extension for a PSD2 certificate and prints its DER encoding as upper case hex.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQCStatements(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.certType, "type", "", fmt.Sprintf("eIDAS certificate type (%s)", joinNames(eidas.CertTypes())))
	cmd.Flags().StringSliceVar(&opts.roles, "role", nil, fmt.Sprintf("PSD2 role (%s), repeatable", joinNames(psd2.Roles())))
	cmd.Flags().StringVar(&opts.ncaName, "nca-name", "", "Name of the national competent authority")
	cmd.Flags().StringVar(&opts.ncaID, "nca-id", "", "Identifier of the national competent authority, e.g. FI-FINFSA")
	cmd.Flags().BoolVar(&opts.qualified, "qualified", true, "Add the QcCompliance statement")
	cmd.MarkFlagRequired("type")
	return cmd
}

func runQCStatements(w io.Writer, opts *qcStatementsOptions) error {
	certType, err := eidas.ParseCertType(opts.certType)
	if err != nil {
		return err
	}
	q := eidas.NewQCStatements()
	if opts.qualified {
		if err := q.AddStatement(eidas.OIDQcCompliance); err != nil {
			return err
		}
	}
	if err := q.SetEidasCertificateType(certType); err != nil {
		return err
	}
	if len(opts.roles) > 0 || opts.ncaName != "" || opts.ncaID != "" {
		roles := psd2.NewRolesOfPsp()
		for _, name := range opts.roles {
			role, err := psd2.ParseRoleName(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			roles.AddRole(role)
		}
		if err := q.SetPsd2Statement(psd2.NewQcStatement(roles, opts.ncaName, opts.ncaID)); err != nil {
			return err
		}
	}
	der, err := q.MarshalASN1()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.ToUpper(hex.EncodeToString(der)))
	return nil
}

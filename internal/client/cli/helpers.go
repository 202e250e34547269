package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/iudanet/credisync/internal/models"
)

// parseEntityType принимает имя сущности в единственном или множественном числе
func parseEntityType(arg string) (models.EntityType, error) {
	name := strings.ToLower(strings.TrimSpace(arg))
	t := models.EntityType(strings.TrimSuffix(name, "s"))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown entity type: %s. Use: client, credit, installment, payment, route, product", arg)
	}
	return t, nil
}

// newFlagSet флаги подкоманды; ошибки разбора возвращаются вызывающему
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs разбирает флаги, стоящие в любом месте списка аргументов
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// label краткое описание записи для списков
func label(rec models.Record) string {
	switch r := rec.(type) {
	case *models.Client:
		return fmt.Sprintf("%s (doc %s)", r.Name, r.Document)
	case *models.Route:
		return r.Name
	case *models.Product:
		return fmt.Sprintf("%s, %s%% %s x%d", r.Name, r.InterestPercent.String(), r.Frequency, r.InstallmentCount)
	case *models.Credit:
		return fmt.Sprintf("client %s, balance %s, %s", r.ClientID, r.OutstandingBalance.StringFixed(2), r.Status)
	case *models.Installment:
		return fmt.Sprintf("credit %s #%d, due %s, %s", r.CreditID, r.Number, r.Due().StringFixed(2), r.Status)
	case *models.Payment:
		return fmt.Sprintf("credit %s, amount %s, %s", r.CreditID, r.Amount.StringFixed(2), r.Kind)
	default:
		return rec.RecordID()
	}
}

func syncMark(rec models.Record) string {
	if rec.Sync().PendingSync {
		return "⏳"
	}
	return "✓"
}

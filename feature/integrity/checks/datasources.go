package checks

import (
	"context"
	"strings"

	"catalog-sync/feature/catalog"
	"catalog-sync/feature/catalog/models"
)

// DatasourceReport describes whether a datasource root can be listed.
type DatasourceReport struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Backend   string `json:"backend"`
	Root      string `json:"root"`
	Reachable bool   `json:"reachable"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CheckDatasources resolves the remote of every hierarchical datasource and
// checks that its root exists. Registry datasources are skipped.
func CheckDatasources(ctx context.Context, list []models.Datasource, remotes catalog.RemoteFactory) []DatasourceReport {
	reports := make([]DatasourceReport, 0, len(list))
	for i := range list {
		ds := &list[i]
		report := DatasourceReport{
			ID:      ds.ID,
			Name:    ds.Name,
			Backend: string(ds.Backend),
			Root:    strings.Trim(ds.Prefix, "/"),
		}
		if ds.Backend == models.BackendDHIS2 {
			report.Skipped = true
			reports = append(reports, report)
			continue
		}

		remote, err := remotes.Remote(ctx, ds)
		if err != nil {
			report.Error = err.Error()
			reports = append(reports, report)
			continue
		}
		ok, err := remote.Exists(ctx, report.Root)
		switch {
		case err != nil:
			report.Error = err.Error()
		case !ok:
			report.Error = "root does not exist"
		default:
			report.Reachable = true
		}
		reports = append(reports, report)
	}
	return reports
}

// DuplicateCounter counts removable duplicate catalog rows.
type DuplicateCounter interface {
	CountDuplicates(ctx context.Context, datasourceID uint) (int64, error)
}

// DuplicateReport is the number of duplicate rows held by a datasource.
type DuplicateReport struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Duplicates int64  `json:"duplicates"`
}

// CheckDuplicates lists the datasources whose catalog holds duplicate rows.
func CheckDuplicates(ctx context.Context, list []models.Datasource, counter DuplicateCounter) ([]DuplicateReport, error) {
	reports := []DuplicateReport{}
	for _, ds := range list {
		n, err := counter.CountDuplicates(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			reports = append(reports, DuplicateReport{ID: ds.ID, Name: ds.Name, Duplicates: n})
		}
	}
	return reports, nil
}

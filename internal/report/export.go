package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/stayscope/stayscope-cli/internal/analysis"
	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/model"
)

// ExportWorkbook writes a snapshot, and optionally its delta and analysis
// output, to an XLSX workbook with one sheet per section.
func ExportWorkbook(path string, snap *model.Snapshot, delta *diff.Delta, ar *analysis.Report) error {
	f := xlsx.NewFile()

	if err := addListingsSheet(f, snap); err != nil {
		return err
	}
	if delta != nil {
		if err := addChangesSheet(f, delta); err != nil {
			return err
		}
	}
	if ar != nil {
		if err := addAnalysisSheet(f, ar); err != nil {
			return err
		}
	}

	return eris.Wrapf(f.Save(path), "report: save workbook %s", path)
}

func addListingsSheet(f *xlsx.File, snap *model.Snapshot) error {
	sheet, err := f.AddSheet("Listings")
	if err != nil {
		return eris.Wrap(err, "report: add listings sheet")
	}

	addHeaderRow(sheet, "ID", "Name", "Latitude", "Longitude", "Nightly Price",
		"Currency", "Rating", "Reviews", "Available", "Possibly Incomplete")

	for _, l := range snap.Listings {
		row := sheet.AddRow()
		row.AddCell().Value = l.ID
		row.AddCell().Value = l.Name
		row.AddCell().SetFloat(l.Latitude)
		row.AddCell().SetFloat(l.Longitude)
		row.AddCell().SetFloat(l.NightlyPrice)
		row.AddCell().Value = l.Currency
		if l.UserRating != nil {
			row.AddCell().SetFloat(*l.UserRating)
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().SetInt(l.ReviewCount)
		row.AddCell().SetBool(l.Available)
		row.AddCell().SetBool(l.PossiblyIncomplete)
	}
	return nil
}

func addChangesSheet(f *xlsx.File, delta *diff.Delta) error {
	sheet, err := f.AddSheet("Changes")
	if err != nil {
		return eris.Wrap(err, "report: add changes sheet")
	}

	addHeaderRow(sheet, "ID", "Kind", "Field", "From", "To")

	for _, e := range delta.Entries {
		if e.Kind == diff.KindUnchanged {
			continue
		}
		if len(e.Fields) == 0 {
			row := sheet.AddRow()
			row.AddCell().Value = e.ID
			row.AddCell().Value = string(e.Kind)
			continue
		}
		for _, fc := range e.Fields {
			row := sheet.AddRow()
			row.AddCell().Value = e.ID
			row.AddCell().Value = string(e.Kind)
			row.AddCell().Value = fc.Field
			row.AddCell().Value = fc.From
			row.AddCell().Value = fc.To
		}
	}
	return nil
}

func addAnalysisSheet(f *xlsx.File, ar *analysis.Report) error {
	sheet, err := f.AddSheet("Analysis")
	if err != nil {
		return eris.Wrap(err, "report: add analysis sheet")
	}

	addHeaderRow(sheet, "ID", "AI Rating", "Focus", "Summary")

	for _, a := range ar.Analyses {
		if a.Rating != nil {
			row := sheet.AddRow()
			row.AddCell().Value = a.ListingID
			row.AddCell().SetFloat(a.Rating.Score)
		}
		if a.Summary == nil {
			continue
		}
		for _, fs := range a.Summary.Focuses {
			for _, b := range fs.Bullets {
				row := sheet.AddRow()
				row.AddCell().Value = a.ListingID
				row.AddCell().Value = ""
				row.AddCell().Value = fs.Focus
				row.AddCell().Value = b
			}
		}
	}
	return nil
}

func addHeaderRow(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		row.AddCell().Value = t
	}
}

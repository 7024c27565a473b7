package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gdamore/tcell"
	"github.com/ohmgrid/pfc_core/internal/pkg/powerflow"
	"github.com/rivo/tview"
)

// hmi is a terminal dashboard polling the pfc webservice for the latest
// solve results.
type hmi struct {
	addr        string
	client      *http.Client
	app         *tview.Application
	busTable    *tview.Table
	branchTable *tview.Table
	status      *tview.TextView
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "pfc webservice address")
	rate := flag.Duration("rate", 1*time.Second, "poll rate")
	flag.Parse()

	h := newHMI(*addr)
	go h.poll(*rate)

	if err := h.app.Run(); err != nil {
		panic(err)
	}
}

func newHMI(addr string) *hmi {
	h := &hmi{
		addr:        addr,
		client:      &http.Client{Timeout: 2 * time.Second},
		app:         tview.NewApplication(),
		busTable:    tview.NewTable(),
		branchTable: tview.NewTable(),
		status:      tview.NewTextView(),
	}

	h.busTable.SetBorder(true).SetTitle(" Buses ")
	h.branchTable.SetBorder(true).SetTitle(" Branches ")
	h.status.SetBorder(true).SetTitle(" Report ")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.busTable, 0, 2, false).
		AddItem(h.branchTable, 0, 2, false).
		AddItem(h.status, 3, 1, false)

	h.app.SetRoot(flex, true)
	return h
}

func (h *hmi) poll(rate time.Duration) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for range ticker.C {
		record := powerflow.Record{}
		if err := h.get("/results", &record); err != nil {
			h.app.QueueUpdateDraw(func() {
				h.status.SetText(fmt.Sprintf("poll: %v", err))
			})
			continue
		}
		h.app.QueueUpdateDraw(func() { h.render(record) })
	}
}

func (h *hmi) get(path string, target interface{}) error {
	resp, err := h.client.Get(h.addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%v: %v", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func (h *hmi) render(record powerflow.Record) {
	h.busTable.Clear()
	for i, header := range []string{"Bus", "Vm [p.u.]", "Va [deg]", "P [MW]", "Q [MVAr]"} {
		h.busTable.SetCell(0, i, headerCell(header))
	}
	for i, row := range record.Buses {
		h.busTable.SetCell(i+1, 0, tview.NewTableCell(row.Name))
		h.busTable.SetCell(i+1, 1, valueCell(row.Vm))
		h.busTable.SetCell(i+1, 2, valueCell(row.Va))
		h.busTable.SetCell(i+1, 3, valueCell(row.P))
		h.busTable.SetCell(i+1, 4, valueCell(row.Q))
	}

	h.branchTable.Clear()
	for i, header := range []string{"Line", "P [MW]", "Q [MVAr]", "Loading [%]", "Losses [MW]"} {
		h.branchTable.SetCell(0, i, headerCell(header))
	}
	for i, row := range record.Branches {
		h.branchTable.SetCell(i+1, 0, tview.NewTableCell(row.Name))
		h.branchTable.SetCell(i+1, 1, valueCell(row.P))
		h.branchTable.SetCell(i+1, 2, valueCell(row.Q))
		loading := valueCell(row.Loading)
		if row.Loading > 100 {
			loading.SetTextColor(tcell.ColorRed)
		}
		h.branchTable.SetCell(i+1, 3, loading)
		h.branchTable.SetCell(i+1, 4, valueCell(row.LossP))
	}

	converged := "CONVERGED"
	if !record.Report.Converged {
		converged = "NOT CONVERGED"
	}
	h.status.SetText(fmt.Sprintf("%v | %v | error %.3e | %d iterations | %v",
		record.Circuit, converged, record.Report.Error,
		record.Report.Iterations, record.Timestamp.Format(time.RFC3339)))
}

func headerCell(text string) *tview.TableCell {
	return tview.NewTableCell(text).
		SetTextColor(tcell.ColorYellow).
		SetSelectable(false)
}

func valueCell(v float64) *tview.TableCell {
	return tview.NewTableCell(fmt.Sprintf("%8.3f", v)).
		SetAlign(tview.AlignRight)
}

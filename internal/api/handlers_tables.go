package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/regstock/internal/abs"
	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/count"
	"github.com/dgallion1/regstock/internal/industry"
)

// tablesFor returns the tables to serve for a request. Without
// override parameters it serves the latest run's tables; with any of
// methodology, cross_cutting, base_year, top_n or repeal_adjusted it
// recomputes from the stored corpus so the dashboard can flip options
// without a refresh run.
func (s *Server) tablesFor(r *http.Request) (*aggregate.Tables, int, error) {
	q := r.URL.Query()
	override := false
	for _, p := range []string{"methodology", "cross_cutting", "base_year", "top_n", "repeal_adjusted"} {
		if q.Get(p) != "" {
			override = true
			break
		}
	}

	if !override {
		tables, _ := s.runs.Latest()
		if tables == nil {
			return nil, http.StatusServiceUnavailable, errors.New("no aggregation run has completed yet")
		}
		return tables, 0, nil
	}

	opts := aggregate.Options{
		Stock: aggregate.StockOptions{RepealAdjusted: s.cfg.RepealAdjusted},
		Industry: aggregate.IndustryOptions{
			Methodology: s.cfg.Methodology,
			Mode:        s.cfg.CrossCuttingMode,
			Shares:      s.cfg.Shares(),
			TopN:        s.cfg.TopN,
		},
		BaseYear: s.cfg.BaseYear,
	}
	if v := q.Get("methodology"); v != "" {
		opts.Industry.Methodology = count.Methodology(v)
	}
	if v := q.Get("cross_cutting"); v != "" {
		mode := aggregate.CrossCuttingMode(v)
		switch mode {
		case aggregate.CrossCuttingInclude, aggregate.CrossCuttingExclude, aggregate.CrossCuttingApportion:
		default:
			return nil, http.StatusBadRequest, errors.New("unknown cross_cutting mode: "+v)
		}
		opts.Industry.Mode = mode
	}
	if v := q.Get("base_year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("base_year must be an integer")
		}
		opts.BaseYear = n
	}
	if v := q.Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, http.StatusBadRequest, errors.New("top_n must be a positive integer")
		}
		opts.Industry.TopN = n
	}
	if v := q.Get("repeal_adjusted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("repeal_adjusted must be a boolean")
		}
		opts.Stock.RepealAdjusted = b
	}

	docs, err := s.store.All(r.Context())
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if len(docs) == 0 {
		return nil, http.StatusServiceUnavailable, errors.New("corpus is empty, trigger a refresh first")
	}

	var absent []string
	if s.cfg.IndicatorsPath != "" {
		indicators, err := abs.LoadFile(s.cfg.IndicatorsPath)
		if err != nil {
			absent = []string{abs.SeriesGVA, abs.SeriesEmployment, abs.SeriesProductivity}
		} else {
			opts.External = abs.HeadlineSeries(indicators)
			if opts.Industry.Mode == aggregate.CrossCuttingApportion && opts.Industry.Shares == nil {
				shares, err := abs.EmploymentShares(indicators, time.Now().Year())
				if err != nil {
					return nil, http.StatusBadRequest, err
				}
				opts.Industry.Shares = shares
			}
		}
	}

	tables, err := aggregate.Run(docs, s.assigner, opts)
	if err != nil {
		var cfgErr *industry.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, http.StatusBadRequest, err
		}
		return nil, http.StatusInternalServerError, err
	}
	tables.AbsentSeries = absent
	return tables, 0, nil
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	tables, code, err := s.tablesFor(r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	q := r.URL.Query()
	from, to := 0, 0
	if v := q.Get("from"); v != "" {
		from, err = strconv.Atoi(v)
		if err != nil {
			jsonError(w, "from must be an integer year", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("to"); v != "" {
		to, err = strconv.Atoi(v)
		if err != nil {
			jsonError(w, "to must be an integer year", http.StatusBadRequest)
			return
		}
	}
	legType := q.Get("leg_type")

	rows := tables.Stock
	if from != 0 || to != 0 || legType != "" {
		filtered := make([]aggregate.YearlyStock, 0, len(rows))
		for _, row := range rows {
			if from != 0 && row.Year < from {
				continue
			}
			if to != 0 && row.Year > to {
				continue
			}
			if legType != "" && string(row.Type) != legType {
				continue
			}
			filtered = append(filtered, row)
		}
		rows = filtered
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"stock":        rows,
		"skipped_rows": tables.SkippedRows,
	})
}

func (s *Server) handleIndustries(w http.ResponseWriter, r *http.Request) {
	tables, code, err := s.tablesFor(r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"industries":   tables.Industries,
		"skipped_rows": tables.SkippedRows,
	})
}

func (s *Server) handleIndustryLegislation(w http.ResponseWriter, r *http.Request) {
	d := industry.Division(chi.URLParam(r, "division"))
	if !d.Valid() {
		jsonError(w, "unknown division: "+string(d), http.StatusNotFound)
		return
	}

	tables, code, err := s.tablesFor(r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	for _, row := range tables.Industries {
		if row.Division == d {
			respondJSON(w, http.StatusOK, map[string]any{
				"division":    d,
				"name":        d.Name(),
				"legislation": row.TopDocs,
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"division":    d,
		"name":        d.Name(),
		"legislation": []aggregate.DocRef{},
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("division"); v != "" {
		s.handleDivisionIndex(w, r, industry.Division(v))
		return
	}

	tables, code, err := s.tablesFor(r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	indexed := tables.Indexed
	if name := r.URL.Query().Get("series"); name != "" {
		filtered := make([]aggregate.IndexedSeries, 0, 1)
		for _, series := range indexed {
			if series.Name == name {
				filtered = append(filtered, series)
			}
		}
		indexed = filtered
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"indexed":       indexed,
		"absent_series": tables.AbsentSeries,
	})
}

// handleDivisionIndex serves the per-division GVA and employment
// indicator series rebased to the base year, for the drill-down view
// that puts one industry's regulatory stock against its economic
// output.
func (s *Server) handleDivisionIndex(w http.ResponseWriter, r *http.Request, d industry.Division) {
	if !d.Valid() || d == industry.CrossCutting || d == industry.Unclassified {
		jsonError(w, "unknown division: "+string(d), http.StatusNotFound)
		return
	}
	if s.cfg.IndicatorsPath == "" {
		jsonError(w, "no indicator snapshot configured", http.StatusServiceUnavailable)
		return
	}
	indicators, err := abs.LoadFile(s.cfg.IndicatorsPath)
	if err != nil {
		jsonError(w, "indicator snapshot unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	baseYear := s.cfg.BaseYear
	if v := r.URL.Query().Get("base_year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "base_year must be an integer", http.StatusBadRequest)
			return
		}
		baseYear = n
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"division": d,
		"name":     d.Name(),
		"indexed":  aggregate.Index(abs.DivisionSeries(indicators, d), baseYear),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.All(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

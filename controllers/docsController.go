package controllers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0.0"

type endpointDoc struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Docs lists the /api endpoints registered on the engine, grouped by
// resource.
func Docs(routes func() gin.RoutesInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		groups := map[string][]endpointDoc{}
		for _, r := range routes() {
			rest, ok := strings.CutPrefix(r.Path, "/api/")
			if !ok {
				continue
			}
			group, _, _ := strings.Cut(rest, "/")
			groups[group] = append(groups[group], endpointDoc{Method: r.Method, Path: r.Path})
		}
		for _, eps := range groups {
			sort.Slice(eps, func(i, j int) bool {
				if eps[i].Path != eps[j].Path {
					return eps[i].Path < eps[j].Path
				}
				return eps[i].Method < eps[j].Method
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "API Documentation",
			"data": gin.H{
				"name":        "StreetLight Watch API",
				"version":     apiVersion,
				"description": "Backend API for streetlight fault reporting",
				"endpoints":   groups,
				"status":      "active",
			},
		})
	}
}

// Package router assembles the gin engine from declarative route tables.
package router

import (
	"github.com/gin-gonic/gin"
)

// APIVersion prefixes every versioned route
const APIVersion = "v1"

// Route is one endpoint of a Group
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// Group is a route prefix with its own middleware. Nested groups inherit
// the middleware of their parents.
type Group struct {
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
	Groups     []Group
}

// Mount registers groups below parent
func Mount(parent gin.IRouter, groups ...Group) {
	for _, g := range groups {
		rg := parent.Group(g.Prefix, g.Middleware...)
		for _, r := range g.Routes {
			rg.Handle(r.Method, r.Path, r.Handler)
		}
		Mount(rg, g.Groups...)
	}
}

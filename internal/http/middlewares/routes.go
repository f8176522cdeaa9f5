package middlewares

import (
	"sort"
	"strings"
)

// RouteClass es la clasificación del Gatekeeper para un path.
type RouteClass string

const (
	ClassPublic RouteClass = "public"
	ClassPage   RouteClass = "page"
	ClassAPI    RouteClass = "api"
)

type routeRule struct {
	prefix string
	class  RouteClass
}

// Classifier resuelve la clase por tabla de prefijos; el prefijo más largo
// gana. Lo que no matchea nada se trata como página protegida.
type Classifier struct {
	rules []routeRule
}

// NewClassifier arma la tabla desde las listas de configuración.
func NewClassifier(public, pages, api []string) *Classifier {
	c := &Classifier{}
	add := func(prefixes []string, class RouteClass) {
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				c.rules = append(c.rules, routeRule{prefix: p, class: class})
			}
		}
	}
	add(public, ClassPublic)
	add(pages, ClassPage)
	add(api, ClassAPI)
	sort.SliceStable(c.rules, func(i, j int) bool {
		return len(c.rules[i].prefix) > len(c.rules[j].prefix)
	})
	return c
}

// Classify devuelve la clase de path.
func (c *Classifier) Classify(path string) RouteClass {
	for _, r := range c.rules {
		if matchPrefix(path, r.prefix) {
			return r.class
		}
	}
	return ClassPage
}

// matchPrefix respeta segmentos: "/login" matchea "/login" y "/login/x",
// no "/loginx". Un prefijo terminado en "/" matchea también sin la barra.
func matchPrefix(path, prefix string) bool {
	base := strings.TrimSuffix(prefix, "/")
	if base == "" {
		return true
	}
	return path == base || strings.HasPrefix(path, base+"/")
}

package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by each domain's HTTP handler; the application frame
// mounts whatever routes it registers behind the shared middleware chain.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

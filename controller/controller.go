package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/onestraw/hrwlb/balancer"
	"github.com/onestraw/hrwlb/config"
)

const shutdownTimeout = 5 * time.Second

// Controller provides interface to operate balancer.
type Controller struct {
	sync.Mutex
	Address string
	Auth    *Authentication

	server *http.Server
}

// New returns a Controller object.
func New(ctlCfg *config.Controller) *Controller {
	return &Controller{
		Address: ctlCfg.Address,
		Auth:    &Authentication{ctlCfg.Auth.Username, ctlCfg.Auth.Password},
	}
}

// Handler returns the controller API of balancer, without authentication.
func Handler(b *balancer.Balancer) http.Handler {
	r := mux.NewRouter()
	r.Handle("/stats", statsHandler(b)).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(b.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	r.Handle("/vs", addVirtualServer(b)).Methods("POST")
	r.Handle("/vs", listAllVirtualServer(b)).Methods("GET")
	r.Handle("/vs/{name}", modifyVirtualServerStatus(b)).Methods("POST")
	r.Handle("/vs/{name}", listVirtualServer(b)).Methods("GET")
	r.Handle("/vs/{name}/pool", addPoolMember(b)).Methods("POST")
	r.Handle("/vs/{name}/pool", deletePoolMember(b)).Methods("DELETE")
	r.Handle("/vs/{name}/pool/status", modifyPoolMemberStatus(b)).Methods("POST")
	r.Handle("/vs/{name}/lookup", lookup(b)).Methods("GET")
	return r
}

// Run starts the controller.
func (c *Controller) Run(b *balancer.Balancer) error {
	c.Lock()
	defer c.Unlock()

	ln, err := net.Listen("tcp", c.Address)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: BasicAuth(c.Auth)(Handler(b))}
	c.server = server
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("controller err=%v", err)
		}
	}()
	log.Infof("Controller listen %s", ln.Addr())
	return nil
}

// Stop stops the controller.
func (c *Controller) Stop() error {
	c.Lock()
	defer c.Unlock()

	if c.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := c.server.Shutdown(ctx)
	c.server = nil
	return err
}

func statsHandler(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := []string{}
		for _, vs := range b.VirtualServers() {
			result = append(result, vs.Stats())
		}
		io.WriteString(w, strings.Join(result, "\n"))
	})
}

func listAllVirtualServer(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, vs := range b.VirtualServers() {
			data := fmt.Sprintf("Name:%s, Address:%s, Status:%s, Hash:%s, Key:%s, Pool:\n%s\n\n",
				vs.Name, vs.Address, vs.Status(), vs.Hash, vs.HashKey, vs.Pool)
			io.WriteString(w, data)
		}
	})
}

func findVirtualServer(b *balancer.Balancer, w http.ResponseWriter, r *http.Request) *balancer.VirtualServer {
	name := mux.Vars(r)["name"]
	vs, err := b.FindVirtualServer(name)
	if err != nil {
		log.Errorf("FindVirtualServer %s err=%v", name, err)
		WriteBadRequest(w, err)
		return nil
	}
	return vs
}

func listVirtualServer(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs := findVirtualServer(b, w, r)
		if vs == nil {
			return
		}
		io.WriteString(w, vs.Pool.String())
	})
}

type modifyVirtualServer struct {
	Action string `json:"action"`
}

func modifyVirtualServerStatus(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req modifyVirtualServer
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Errorf("Decode request err=%v", err)
			WriteBadRequest(w, err)
			return
		}
		vs := findVirtualServer(b, w, r)
		if vs == nil {
			return
		}
		log.Infof("virtual server name %s, action %s", vs.Name, req.Action)

		var err error
		switch req.Action {
		case "enable":
			err = vs.Run()
		case "disable":
			err = vs.Stop()
		default:
			log.Errorf("%v %q", ErrUnknownAction, req.Action)
			WriteError(w, ErrUnknownAction)
			return
		}

		if err != nil {
			log.Errorf("%s virtual server %s err=%v", req.Action, vs.Name, err)
			WriteBadRequest(w, err)
			return
		}
		io.WriteString(w, "success")
	})
}

func addVirtualServer(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var vs config.VirtualServer
		if err := json.NewDecoder(r.Body).Decode(&vs); err != nil {
			log.Errorf("Decode request err=%v", err)
			WriteBadRequest(w, err)
			return
		}

		log.Infof("VirtualServer %+v", vs)
		if err := b.AddVirtualServer(&vs); err != nil {
			log.Errorf("AddVirtualServer err=%v", err)
			WriteBadRequest(w, err)
			return
		}

		io.WriteString(w, "Add success")
	})
}

type poolMember struct {
	Address string `json:"address"`
	Action  string `json:"action"`
}

func decodeMember(w http.ResponseWriter, r *http.Request) *poolMember {
	var member poolMember
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		log.Errorf("Decode request err=%v", err)
		WriteBadRequest(w, err)
		return nil
	}
	if member.Address == "" {
		WriteError(w, ErrAddressEmpty)
		return nil
	}
	return &member
}

func addPoolMember(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs := findVirtualServer(b, w, r)
		if vs == nil {
			return
		}
		member := decodeMember(w, r)
		if member == nil {
			return
		}
		if !vs.AddPeer(member.Address) {
			WriteError(w, ErrPeerExisted)
			return
		}
		io.WriteString(w, "Add peer success")
	})
}

func deletePoolMember(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs := findVirtualServer(b, w, r)
		if vs == nil {
			return
		}
		member := decodeMember(w, r)
		if member == nil {
			return
		}
		if !vs.RemovePeer(member.Address) {
			WriteError(w, ErrPeerNotFound)
			return
		}
		io.WriteString(w, "Remove peer success")
	})
}

func modifyPoolMemberStatus(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs := findVirtualServer(b, w, r)
		if vs == nil {
			return
		}
		member := decodeMember(w, r)
		if member == nil {
			return
		}

		var ok bool
		switch member.Action {
		case "down":
			ok = vs.DownPeer(member.Address)
		case "up":
			ok = vs.UpPeer(member.Address)
		default:
			log.Errorf("%v %q", ErrUnknownAction, member.Action)
			WriteError(w, ErrUnknownAction)
			return
		}
		if !ok {
			WriteError(w, ErrPeerUnchanged)
			return
		}
		io.WriteString(w, "success")
	})
}

func lookup(b *balancer.Balancer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs := findVirtualServer(b, w, r)
		if vs == nil {
			return
		}
		query := r.URL.Query()
		key := query.Get("key")
		if key == "" {
			WriteError(w, ErrKeyEmpty)
			return
		}
		n := 1
		if s := query.Get("n"); s != "" {
			var err error
			if n, err = strconv.Atoi(s); err != nil || n <= 0 {
				WriteError(w, ErrInvalidCount)
				return
			}
		}

		peers, err := vs.Lookup(key, n)
		if err != nil {
			log.Errorf("Lookup %q err=%v", key, err)
			WriteError(w, ErrNoPeerAvailable)
			return
		}
		io.WriteString(w, strings.Join(peers, "\n"))
	})
}

// Package ninefs exports the actuator levels as a small read-only 9P
// file tree:
//
//	/version
//	/leds/default
//	/leds/<id>
//
// Each LED file reads "ON\n" or "OFF\n".
package ninefs

import (
	"errors"
	"strings"

	"git.sr.ht/~moody/ninep"
)

var (
	errNoRoot = errors.New("no root directory")
	errNoFile = errors.New("no such file or directory")
	errNoDir  = errors.New("not a directory")
	errNoAbs  = errors.New("no absolute path")
)

const (
	owner  = "ledctl"
	iounit = 8192
)

// ReadFunc produces the content of a file on every read.
type ReadFunc func() ([]byte, error)

type node struct {
	ref      *ninep.Dir
	children []*node // nil for files
	read     ReadFunc
}

func (n *node) isDir() bool { return n.read == nil }

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.ref.Name == name {
			return c
		}
	}
	return nil
}

// Namespace is a synthetic file tree served over 9P. The tree is fixed once
// built; only file contents change.
type Namespace struct {
	ninep.NopFS
	dict map[uint64]*node
	next uint64
}

// NewNamespace returns a namespace holding only the root directory.
func NewNamespace() *Namespace {
	ns := &Namespace{dict: make(map[uint64]*node)}
	ns.dict[0] = ns.newNode("/", nil)
	return ns
}

func (ns *Namespace) newNode(name string, read ReadFunc) *node {
	kind, perm := ninep.QTFile, uint32(0444)
	if read == nil {
		kind, perm = ninep.QTDir, 0555|ninep.DMDir
	}
	n := &node{
		read: read,
		ref: &ninep.Dir{
			Qid: ninep.Qid{
				Path: ns.next,
				Type: byte(kind),
			},
			Name: name,
			Mode: perm,
			Uid:  owner,
			Gid:  owner,
			Muid: owner,
		},
	}
	ns.next++
	return n
}

// Mkdir adds a directory under parent, which must already exist.
func (ns *Namespace) Mkdir(parent, name string) error {
	return ns.add(parent, ns.newNode(name, nil))
}

// AddFile adds a read-only file under parent.
func (ns *Namespace) AddFile(parent, name string, read ReadFunc) error {
	if read == nil {
		return errors.New("nil read function")
	}
	return ns.add(parent, ns.newNode(name, read))
}

func (ns *Namespace) add(parent string, n *node) error {
	p, err := ns.get(parent)
	if err != nil {
		return err
	}
	if !p.isDir() {
		return errNoDir
	}
	p.children = append(p.children, n)
	ns.dict[n.ref.Path] = n
	return nil
}

func (ns *Namespace) get(path string) (*node, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, errNoAbs
	}
	curr, ok := ns.dict[0]
	if !ok {
		return nil, errNoRoot
	}
	for _, label := range strings.Split(path[1:], "/") {
		if label == "" {
			continue
		}
		if !curr.isDir() {
			return nil, errNoDir
		}
		next := curr.child(label)
		if next == nil {
			return nil, errNoFile
		}
		curr = next
	}
	return curr, nil
}

// ReadFile returns the current content of the file at path.
func (ns *Namespace) ReadFile(path string) ([]byte, error) {
	n, err := ns.get(path)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, errNoFile
	}
	return n.read()
}

// List returns the names in the directory at path.
func (ns *Namespace) List(path string) ([]string, error) {
	n, err := ns.get(path)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, errNoDir
	}
	names := make([]string, 0, len(n.children))
	for _, c := range n.children {
		names = append(names, c.ref.Name)
	}
	return names, nil
}

// ninep.FS

func (ns *Namespace) Attach(t *ninep.Tattach) {
	if n, ok := ns.dict[0]; ok {
		t.Respond(&n.ref.Qid)
	} else {
		t.Err(errNoRoot)
	}
}

func (ns *Namespace) Walk(cur *ninep.Qid, next string) *ninep.Qid {
	n, ok := ns.dict[cur.Path]
	if !ok {
		return nil
	}
	if c := n.child(next); c != nil {
		return &c.ref.Qid
	}
	return nil
}

func (ns *Namespace) Open(t *ninep.Topen, q *ninep.Qid) {
	t.Respond(q, iounit)
}

func (ns *Namespace) Read(t *ninep.Tread, q *ninep.Qid) {
	n, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
		return
	}
	if n.isDir() {
		kids := make([]ninep.Dir, 0, len(n.children))
		for _, c := range n.children {
			kids = append(kids, *c.ref)
		}
		ninep.ReadDir(t, kids)
		return
	}
	data, err := n.read()
	if err != nil {
		t.Err(err)
		return
	}
	ninep.ReadBuf(t, data)
}

func (ns *Namespace) Stat(t *ninep.Tstat, q *ninep.Qid) {
	n, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
		return
	}
	t.Respond(n.ref)
}

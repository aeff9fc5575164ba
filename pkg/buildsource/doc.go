// Package buildsource resolves source URIs to checkout strategies.
//
// Strategies register themselves by name; resolution tries them in
// registration order and instantiates the first whose HandlesURI reports
// true. The git strategy probes by listing remote refs and checks out with
// a plain clone plus optional tree-ish checkout.
package buildsource

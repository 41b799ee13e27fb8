// Package xmlapi manages PAN-OS custom URL categories through the XML API.
//
// Requests are form-encoded POSTs to /api/ authenticated with an X-PAN-KEY
// header. The key comes from configuration or from a keygen exchange.
// Objects are read with action=get on the category container, created with
// action=set, fully overwritten with action=edit and removed with
// action=delete. Commits are enqueued jobs polled with show jobs until they
// finish.
package xmlapi

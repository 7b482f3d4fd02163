// SPDX-License-Identifier: Apache-2.0

/*
Package krb5 implements the client side of the Kerberos V5 AS (Authentication
Service) exchange: the state machine that takes a principal identity and,
through one or more round trips with a KDC, obtains an initial ticket (a TGT
by default) and its session key.

The package does not perform network I/O, parse ASN.1, or implement any
cryptographic primitive itself. Those are supplied by the caller through the
capability interfaces in capabilities.go, or by the concrete implementations
in this package that are themselves thin wrappers over
github.com/jcmturner/gokrb5/v8.

# Driving an exchange

The low-level driver is Context.Step, which the caller invokes repeatedly,
performing the network I/O itself between calls:

	ctx, err := krb5.NewContext(client, server, caps, cfg, opts, krb5.ValidateOptions{})
	if err != nil {
	    return err
	}
	var in []byte
	for {
	    out, realm, flags, err := ctx.Step(in)
	    if err != nil {
	        return err
	    }
	    if flags&krb5.FlagComplete != 0 {
	        break
	    }
	    in, err = transport.SendToKDC(out, realm, flags&krb5.FlagForceTCP != 0)
	    if err != nil {
	        return err
	    }
	}
	creds, err := ctx.Credentials()
	ctx.Close()

A caller driving Step directly must call Context.Close once the exchange
finishes or is abandoned, to zero the long-term key the Context holds.

GetInitialCredentials wraps this loop for callers that already have a
SendToKDC implementation, and calls Close itself.
*/
package krb5

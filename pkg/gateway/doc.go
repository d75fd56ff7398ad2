/*
Package gateway implements the outbound KNX gateway (component C7): the
single entry point for a commanded value bound for a bus address, whether
that command came from the HTTP API or from a block's output port.

Send resolves the address through the bus. An external (group-address)
target is transcoded to its declared DPT's wire representation and handed
to the configured knxdriver.Driver; a driver error is recorded against the
address as a failed telegram and returned to the caller, with no retry —
retries are left to whatever triggered the write in the first place. An
internal (IKO) target is just a bus write with the calling origin; there is
nothing to transcode or forward.
*/
package gateway

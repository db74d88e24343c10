/*
Package pump drives syringe pumps over a serial line using the pumps'
carriage-return terminated text protocol (DIA, RAT, VOL, RUN, STP).

A Channel owns one serial port. A Bank opens several channels together and
closes every channel it opened, whichever way the caller exits.
*/
package pump

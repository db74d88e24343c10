/*
Package spectrometer wraps a USB absorbance spectrometer session: device
selection, integration time configuration and averaged intensity acquisition.

Hardware access goes through the Backend and Device interfaces. A simulated
backend is included for dry runs and tests.
*/
package spectrometer
